package store

import (
	"context"
	"strings"
	"testing"

	"github.com/erazemk/knjiznica/internal/db"
	"github.com/erazemk/knjiznica/internal/model"
)

func TestCreateMember_GeneratesCode(t *testing.T) {
	database := db.NewTestDB(t)
	m := createTestMember(t, database, "ana")

	if !strings.HasPrefix(m.Code, "MBR-") || len(m.Code) != 12 {
		t.Errorf("unexpected member code %q", m.Code)
	}
	if m.Username != "ana" || m.Email != "ana@example.com" {
		t.Errorf("user fields not joined: %+v", m)
	}
}

func TestGetMemberByUser(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	m := createTestMember(t, database, "ana")

	got, err := GetMemberByUser(ctx, database, m.UserID)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.ID != m.ID {
		t.Fatalf("expected member %d, got %+v", m.ID, got)
	}

	missing, err := GetMemberByUser(ctx, database, 9999)
	if err != nil {
		t.Fatal(err)
	}
	if missing != nil {
		t.Error("expected nil for user without member profile")
	}
}

func TestListMembers_Search(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	createTestMember(t, database, "ana")
	createTestMember(t, database, "bojan")

	all, err := ListMembers(ctx, database, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Errorf("expected 2 members, got %d", len(all))
	}

	found, _ := ListMembers(ctx, database, "boj")
	if len(found) != 1 || found[0].Username != "bojan" {
		t.Errorf("expected only bojan, got %+v", found)
	}
}

func TestNotificationPrefs(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	m := createTestMember(t, database, "ana")

	p, err := GetNotificationPrefs(ctx, database, m.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !p.EmailDueReminder || !p.EmailOverdueReminder {
		t.Errorf("expected reminders enabled by default, got %+v", p)
	}

	if err := SetNotificationPrefs(ctx, database, m.ID, model.NotificationPrefs{EmailDueReminder: false, EmailOverdueReminder: true}); err != nil {
		t.Fatal(err)
	}
	p, _ = GetNotificationPrefs(ctx, database, m.ID)
	if p.EmailDueReminder || !p.EmailOverdueReminder {
		t.Errorf("preferences not stored: %+v", p)
	}
}

func TestGetMemberStats(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	m := createTestMember(t, database, "ana")
	b1 := createTestBook(t, database, "Alamut", "isbn-1", 2)
	b2 := createTestBook(t, database, "Krst pri Savici", "isbn-2", 2)
	b3 := createTestBook(t, database, "Martin Krpan", "isbn-3", 2)

	createTestLoan(t, database, m.ID, b1.ID, model.LoanBorrowed, "2024-01-01", "2024-01-08")
	createTestLoan(t, database, m.ID, b2.ID, model.LoanBorrowed, "2024-01-05", "2024-01-12")
	returned := createTestLoan(t, database, m.ID, b3.ID, model.LoanReturned, "2023-12-01", "2023-12-08")
	if _, err := CreateFine(ctx, database, returned.ID, 4000, model.FineUnpaid, ""); err != nil {
		t.Fatal(err)
	}

	s, err := GetMemberStats(ctx, database, m.ID, "2024-01-10")
	if err != nil {
		t.Fatal(err)
	}
	if s.TotalLoans != 3 || s.ActiveLoans != 2 || s.ReturnedLoans != 1 || s.OverdueLoans != 1 {
		t.Errorf("unexpected loan stats: %+v", s)
	}
	if s.UnpaidFines != 4000 {
		t.Errorf("expected 4000 unpaid, got %d", s.UnpaidFines)
	}
}
