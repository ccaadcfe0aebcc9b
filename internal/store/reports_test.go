package store

import (
	"context"
	"testing"

	"github.com/erazemk/knjiznica/internal/db"
	"github.com/erazemk/knjiznica/internal/model"
)

func TestLoanStatistics(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	m := createTestMember(t, database, "ana")
	b1 := createTestBook(t, database, "Alamut", "isbn-1", 2)
	b2 := createTestBook(t, database, "Deseti brat", "isbn-2", 2)
	b3 := createTestBook(t, database, "Martin Krpan", "isbn-3", 2)

	createTestLoan(t, database, m.ID, b1.ID, model.LoanReturned, "2024-01-03", "2024-01-10")
	createTestLoan(t, database, m.ID, b2.ID, model.LoanBorrowed, "2024-01-20", "2024-01-27")
	createTestLoan(t, database, m.ID, b3.ID, model.LoanBorrowed, "2024-02-02", "2024-02-09")

	stats, err := LoanStatistics(ctx, database, model.PeriodMonth, ReportRange{})
	if err != nil {
		t.Fatal(err)
	}
	if len(stats) != 2 {
		t.Fatalf("expected 2 months, got %+v", stats)
	}
	if stats[0].Period != "2024-02" || stats[0].Loans != 1 {
		t.Errorf("unexpected first row %+v", stats[0])
	}
	if stats[1].Period != "2024-01" || stats[1].Loans != 2 || stats[1].Returned != 1 {
		t.Errorf("unexpected second row %+v", stats[1])
	}

	ranged, _ := LoanStatistics(ctx, database, model.PeriodDay, ReportRange{From: "2024-01-15", To: "2024-01-31"})
	if len(ranged) != 1 || ranged[0].Period != "2024-01-20" {
		t.Errorf("unexpected ranged stats %+v", ranged)
	}

	if _, err := LoanStatistics(ctx, database, "decade", ReportRange{}); err == nil {
		t.Error("expected error for unknown period")
	}
}

func TestMostBorrowedAndActive(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	ana := createTestMember(t, database, "ana")
	bojan := createTestMember(t, database, "bojan")
	popular := createTestBook(t, database, "Alamut", "isbn-1", 5)
	other := createTestBook(t, database, "Deseti brat", "isbn-2", 5)

	createTestLoan(t, database, ana.ID, popular.ID, model.LoanReturned, "2024-01-01", "2024-01-08")
	createTestLoan(t, database, bojan.ID, popular.ID, model.LoanBorrowed, "2024-01-02", "2024-01-09")
	createTestLoan(t, database, ana.ID, other.ID, model.LoanBorrowed, "2024-01-03", "2024-01-10")
	// Requests never lent out are not counted.
	createTestLoan(t, database, bojan.ID, other.ID, model.LoanPending, "", "")

	books, err := MostBorrowedBooks(ctx, database, 10, ReportRange{})
	if err != nil {
		t.Fatal(err)
	}
	if len(books) != 2 || books[0].BookID != popular.ID || books[0].Loans != 2 || books[1].Loans != 1 {
		t.Errorf("unexpected ranking %+v", books)
	}

	members, err := MostActiveMembers(ctx, database, 1, ReportRange{})
	if err != nil {
		t.Fatal(err)
	}
	if len(members) != 1 || members[0].MemberID != ana.ID || members[0].Loans != 2 {
		t.Errorf("unexpected ranking %+v", members)
	}
}

func TestFineReport(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	m := createTestMember(t, database, "ana")
	b1 := createTestBook(t, database, "Alamut", "isbn-1", 2)
	b2 := createTestBook(t, database, "Deseti brat", "isbn-2", 2)
	l1 := createTestLoan(t, database, m.ID, b1.ID, model.LoanReturned, "2024-01-01", "2024-01-08")
	l2 := createTestLoan(t, database, m.ID, b2.ID, model.LoanReturned, "2024-01-01", "2024-01-08")
	CreateFine(ctx, database, l1.ID, 2000, model.FinePaid, "")
	CreateFine(ctx, database, l2.ID, 6000, model.FineUnpaid, "")

	report, err := FineReport(ctx, database, model.PeriodYear, ReportRange{})
	if err != nil {
		t.Fatal(err)
	}
	if len(report) != 1 {
		t.Fatalf("expected a single year, got %+v", report)
	}
	r := report[0]
	if r.Count != 2 || r.TotalAmount != 8000 || r.PaidAmount != 2000 || r.UnpaidAmount != 6000 {
		t.Errorf("unexpected fine report %+v", r)
	}
}
