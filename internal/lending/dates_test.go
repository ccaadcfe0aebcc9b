package lending

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/erazemk/knjiznica/internal/model"
)

func TestDaysLate(t *testing.T) {
	tests := []struct {
		name     string
		due, ref string
		want     int
	}{
		{"five days late", "2024-01-10", "2024-01-15", 5},
		{"on the due date", "2024-01-10", "2024-01-10", 0},
		{"early", "2024-01-10", "2024-01-08", 0},
		{"across month end", "2024-01-30", "2024-02-02", 3},
		{"leap day", "2024-02-28", "2024-03-01", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DaysLate(day(tt.ref), day(tt.due)))
		})
	}
}

func TestDaysLate_IgnoresTimeOfDay(t *testing.T) {
	due := day("2024-01-10")
	ref := time.Date(2024, 1, 11, 0, 30, 0, 0, time.UTC)
	assert.Equal(t, 1, DaysLate(ref, due))

	ref = time.Date(2024, 1, 10, 23, 59, 0, 0, time.UTC)
	assert.Equal(t, 0, DaysLate(ref, due))
}

func TestFineAmount(t *testing.T) {
	assert.Equal(t, int64(10000), FineAmount(5, 2000))
	assert.Equal(t, int64(0), FineAmount(0, 2000))
	assert.Equal(t, int64(0), FineAmount(-3, 2000))
	assert.Equal(t, int64(1500), FineAmount(3, 500))
}

func TestCivilDate_Location(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	// 23:30 UTC on the 9th is already the 10th one hour east.
	now := time.Date(2024, 1, 9, 23, 30, 0, 0, time.UTC)

	assert.Equal(t, day("2024-01-09"), CivilDate(now, time.UTC))
	assert.Equal(t, day("2024-01-10"), CivilDate(now, loc))
	assert.Equal(t, day("2024-01-09"), CivilDate(now, nil))
}

func TestDaysUntilDue(t *testing.T) {
	assert.Equal(t, 3, DaysUntilDue(day("2024-01-13"), day("2024-01-10")))
	assert.Equal(t, 0, DaysUntilDue(day("2024-01-10"), day("2024-01-10")))
	assert.Equal(t, -2, DaysUntilDue(day("2024-01-08"), day("2024-01-10")))
}

func TestDeriveStatus(t *testing.T) {
	today := day("2024-01-10")
	due := func(s string) *time.Time { d := day(s); return &d }

	tests := []struct {
		name string
		loan model.Loan
		want string
	}{
		{"borrowed before due", model.Loan{Status: model.LoanBorrowed, DueAt: due("2024-01-12")}, model.LoanBorrowed},
		{"borrowed on due date", model.Loan{Status: model.LoanBorrowed, DueAt: due("2024-01-10")}, model.LoanBorrowed},
		{"borrowed past due", model.Loan{Status: model.LoanBorrowed, DueAt: due("2024-01-09")}, model.LoanOverdue},
		{"stale stored overdue", model.Loan{Status: model.LoanOverdue, DueAt: due("2024-01-20")}, model.LoanBorrowed},
		{"returned", model.Loan{Status: model.LoanReturned, DueAt: due("2024-01-01"), ReturnedAt: due("2024-01-05")}, model.LoanReturned},
		{"pending", model.Loan{Status: model.LoanPending}, model.LoanPending},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveStatus(&tt.loan, today))
		})
	}
}

func TestPolicyValidate(t *testing.T) {
	assert.NoError(t, DefaultPolicy().Validate())

	p := DefaultPolicy()
	p.LoanPeriodDays = 0
	assert.Error(t, p.Validate())

	p = DefaultPolicy()
	p.FinePerDay = -1
	assert.Error(t, p.Validate())
}
