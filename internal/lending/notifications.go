package lending

import (
	"context"
	"time"

	"github.com/erazemk/knjiznica/internal/model"
	"github.com/erazemk/knjiznica/internal/store"
)

// maxLookaheadDays bounds the near-due window.
const maxLookaheadDays = 365

// DueLoan is a loan still out, with its distance to the due date.
// DaysUntilDue is negative and DaysOverdue positive once it is past due.
type DueLoan struct {
	model.Loan
	DaysUntilDue int `json:"days_until_due"`
	DaysOverdue  int `json:"days_overdue"`
}

// NotificationSummary counts what needs a member's attention.
type NotificationSummary struct {
	ActiveLoans      int  `json:"active_loans"`
	NearDueLoans     int  `json:"near_due_loans"`
	OverdueLoans     int  `json:"overdue_loans"`
	UnpaidFines      int  `json:"unpaid_fines"`
	HasNotifications bool `json:"has_notifications"`
}

// MemberDueLoans groups a member's due loans for the admin views.
type MemberDueLoans struct {
	Member     model.Member `json:"member"`
	LoansCount int          `json:"loans_count"`
	TotalFines int64        `json:"total_fines"`
	Loans      []DueLoan    `json:"loans"`
}

func (s *Service) lookahead(days int) (int, error) {
	if days == 0 {
		return s.policy.NearDueDays, nil
	}
	if days < 0 || days > maxLookaheadDays {
		return 0, validationError("days must be between 1 and %d, got %d", maxLookaheadDays, days)
	}
	return days, nil
}

func (s *Service) dueLoans(ctx context.Context, memberID int64, today time.Time, f store.LoanFilter) ([]DueLoan, error) {
	f.MemberID = memberID
	f.Today = store.FormatDate(today)
	f.ActiveOnly = true

	loans, _, err := store.ListLoans(ctx, s.db, f)
	if err != nil {
		return nil, err
	}

	out := make([]DueLoan, 0, len(loans))
	for _, l := range loans {
		d := DueLoan{Loan: *s.present(&l, today)}
		if l.DueAt != nil {
			d.DaysUntilDue = DaysUntilDue(*l.DueAt, today)
			if d.DaysUntilDue < 0 {
				d.DaysOverdue = -d.DaysUntilDue
			}
		}
		out = append(out, d)
	}
	return out, nil
}

func (s *Service) nearDue(ctx context.Context, memberID int64, days int) ([]DueLoan, error) {
	today := s.Today()
	return s.dueLoans(ctx, memberID, today, store.LoanFilter{
		DueFrom: store.FormatDate(today),
		DueTo:   store.FormatDate(AddDays(today, days)),
	})
}

func (s *Service) overdue(ctx context.Context, memberID int64) ([]DueLoan, error) {
	return s.dueLoans(ctx, memberID, s.Today(), store.LoanFilter{Status: model.LoanOverdue})
}

// NearDue lists loans within the caller's scope that fall due between today
// and today plus days. Zero days means the policy default.
func (s *Service) NearDue(ctx context.Context, c Caller, days int) ([]DueLoan, error) {
	scope, err := c.Scope()
	if err != nil {
		return nil, err
	}
	days, err = s.lookahead(days)
	if err != nil {
		return nil, err
	}
	return s.nearDue(ctx, scope.MemberID, days)
}

// Overdue lists loans within the caller's scope that are past due.
func (s *Service) Overdue(ctx context.Context, c Caller) ([]DueLoan, error) {
	scope, err := c.Scope()
	if err != nil {
		return nil, err
	}
	return s.overdue(ctx, scope.MemberID)
}

// NotificationSummary counts active, near-due and overdue loans and loans
// with unpaid fines within the caller's scope.
func (s *Service) NotificationSummary(ctx context.Context, c Caller, days int) (*NotificationSummary, error) {
	scope, err := c.Scope()
	if err != nil {
		return nil, err
	}
	days, err = s.lookahead(days)
	if err != nil {
		return nil, err
	}

	today := s.Today()
	count := func(f store.LoanFilter) (int, error) {
		f.MemberID = scope.MemberID
		f.Today = store.FormatDate(today)
		f.Limit = 1
		_, total, err := store.ListLoans(ctx, s.db, f)
		return total, err
	}

	sum := &NotificationSummary{}
	if sum.ActiveLoans, err = count(store.LoanFilter{ActiveOnly: true}); err != nil {
		return nil, err
	}
	if sum.NearDueLoans, err = count(store.LoanFilter{
		ActiveOnly: true,
		DueFrom:    store.FormatDate(today),
		DueTo:      store.FormatDate(AddDays(today, days)),
	}); err != nil {
		return nil, err
	}
	if sum.OverdueLoans, err = count(store.LoanFilter{Status: model.LoanOverdue}); err != nil {
		return nil, err
	}

	_, unpaid, err := store.ListFines(ctx, s.db, store.FineFilter{
		MemberID: scope.MemberID,
		Status:   model.FineUnpaid,
		Page:     store.Page{Limit: 1},
	})
	if err != nil {
		return nil, err
	}
	sum.UnpaidFines = unpaid
	sum.HasNotifications = sum.NearDueLoans > 0 || sum.OverdueLoans > 0 || sum.UnpaidFines > 0
	return sum, nil
}

// NearDueByMember groups every near-due loan by member.
func (s *Service) NearDueByMember(ctx context.Context, c Caller, days int) ([]MemberDueLoans, error) {
	if err := requireAdmin(c); err != nil {
		return nil, err
	}
	days, err := s.lookahead(days)
	if err != nil {
		return nil, err
	}
	loans, err := s.nearDue(ctx, 0, days)
	if err != nil {
		return nil, err
	}
	return groupByMember(loans), nil
}

// OverdueByMember groups every overdue loan by member, with the sum of the
// fines already attached to those loans.
func (s *Service) OverdueByMember(ctx context.Context, c Caller) ([]MemberDueLoans, error) {
	if err := requireAdmin(c); err != nil {
		return nil, err
	}
	loans, err := s.overdue(ctx, 0)
	if err != nil {
		return nil, err
	}
	return groupByMember(loans), nil
}

// groupByMember keeps members in order of their first loan.
func groupByMember(loans []DueLoan) []MemberDueLoans {
	index := make(map[int64]int)
	groups := []MemberDueLoans{}
	for _, l := range loans {
		i, ok := index[l.MemberID]
		if !ok {
			g := MemberDueLoans{Loans: []DueLoan{}}
			if l.Member != nil {
				g.Member = *l.Member
			}
			groups = append(groups, g)
			i = len(groups) - 1
			index[l.MemberID] = i
		}
		g := &groups[i]
		g.Loans = append(g.Loans, l)
		g.LoansCount++
		if l.Fine != nil {
			g.TotalFines += l.Fine.Amount
		}
	}
	return groups
}
