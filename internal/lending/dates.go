package lending

import (
	"time"

	"github.com/erazemk/knjiznica/internal/model"
)

// CivilDate returns the calendar day t falls on in loc, as midnight UTC.
// All loan dates are compared in this form.
func CivilDate(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// AddDays moves a civil date by n calendar days.
func AddDays(d time.Time, n int) time.Time {
	return d.AddDate(0, 0, n)
}

// DaysBetween returns the signed number of calendar days from a to b.
func DaysBetween(a, b time.Time) int {
	a = CivilDate(a, time.UTC)
	b = CivilDate(b, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}

// DaysLate returns how many whole days ref is past due, never negative.
func DaysLate(ref, due time.Time) int {
	if n := DaysBetween(due, ref); n > 0 {
		return n
	}
	return 0
}

// FineAmount returns the fine for daysLate days at rate per day.
func FineAmount(daysLate int, rate int64) int64 {
	if daysLate <= 0 || rate <= 0 {
		return 0
	}
	return int64(daysLate) * rate
}

// DaysUntilDue is negative once the loan is past due.
func DaysUntilDue(due, today time.Time) int {
	return DaysBetween(today, due)
}

// IsOverdue reports whether a loan holds a copy past its due date.
func IsOverdue(l *model.Loan, today time.Time) bool {
	if l.ReturnedAt != nil || l.DueAt == nil {
		return false
	}
	if l.Status != model.LoanBorrowed && l.Status != model.LoanOverdue {
		return false
	}
	return l.DueAt.Before(today)
}

// DeriveStatus reports a loan's status as of today. Stored "borrowed" and
// "overdue" are both resolved from the due date.
func DeriveStatus(l *model.Loan, today time.Time) string {
	switch l.Status {
	case model.LoanBorrowed, model.LoanOverdue:
		if IsOverdue(l, today) {
			return model.LoanOverdue
		}
		return model.LoanBorrowed
	}
	return l.Status
}

// isHolding reports whether a loan currently ties up a copy.
func isHolding(status string) bool {
	return status == model.LoanBorrowed || status == model.LoanOverdue
}
