package lending

import (
	"context"
	"database/sql"
	"time"

	"github.com/erazemk/knjiznica/internal/model"
	"github.com/erazemk/knjiznica/internal/store"
)

// RequestLoan files a pending loan request for the calling member.
func (s *Service) RequestLoan(ctx context.Context, c Caller, bookID int64, notes string) (*model.Loan, error) {
	if c.MemberID == 0 {
		return nil, ErrNoMemberProfile
	}

	var loan *model.Loan
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := checkBorrowable(ctx, tx, c.MemberID, bookID, true); err != nil {
			return err
		}

		created, err := store.CreateLoan(ctx, tx, &model.Loan{
			BookID:   bookID,
			MemberID: c.MemberID,
			Status:   model.LoanPending,
			Notes:    notes,
		})
		if store.IsUniqueViolation(err) {
			return ErrDuplicateLoan
		}
		loan = created
		return err
	})
	if err != nil {
		return nil, conflict("request", err)
	}

	transition("requested")
	s.logger.Info("loan requested", "user", c.Username, "loan", loan.ID, "book", bookID, "member", c.MemberID)
	return s.present(loan, s.Today()), nil
}

// GrantInput describes a loan an admin hands out directly.
type GrantInput struct {
	MemberID int64
	BookID   int64
	Notes    string
}

// GrantLoan creates an already borrowed loan on behalf of a member.
func (s *Service) GrantLoan(ctx context.Context, c Caller, in GrantInput) (*model.Loan, error) {
	if err := requireAdmin(c); err != nil {
		return nil, err
	}
	if in.MemberID <= 0 || in.BookID <= 0 {
		return nil, validationError("member_id and book_id are required")
	}

	now := s.clock.Now()
	today := CivilDate(now, s.policy.Location)
	due := AddDays(today, s.policy.LoanPeriodDays)

	var loan *model.Loan
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		member, err := store.GetMember(ctx, tx, in.MemberID)
		if err != nil {
			return err
		}
		if member == nil {
			return ErrMemberNotFound
		}

		if err := checkBorrowable(ctx, tx, in.MemberID, in.BookID, true); err != nil {
			return err
		}

		created, err := store.CreateLoan(ctx, tx, &model.Loan{
			BookID:     in.BookID,
			MemberID:   in.MemberID,
			LoanedAt:   &today,
			DueAt:      &due,
			Status:     model.LoanBorrowed,
			Notes:      in.Notes,
			ApprovedBy: &c.UserID,
			ApprovedAt: &now,
		})
		if store.IsUniqueViolation(err) {
			return ErrDuplicateLoan
		}
		loan = created
		return err
	})
	if err != nil {
		return nil, conflict("grant", err)
	}

	transition("granted")
	s.logger.Info("loan granted", "user", c.Username, "loan", loan.ID, "book", in.BookID, "member", in.MemberID,
		"due", store.FormatDate(due))
	return s.present(loan, today), nil
}

// ApproveLoan lends out a pending request. Availability is checked again
// because copies may have been lent since the request was filed; if none is
// left the request stays pending.
func (s *Service) ApproveLoan(ctx context.Context, c Caller, loanID int64) (*model.Loan, error) {
	if err := requireAdmin(c); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	today := CivilDate(now, s.policy.Location)

	var loan *model.Loan
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		l, err := s.loadLoan(ctx, tx, c, loanID)
		if err != nil {
			return err
		}
		if l.Status != model.LoanPending {
			return ErrNotPending
		}
		if err := checkBorrowable(ctx, tx, l.MemberID, l.BookID, false); err != nil {
			return err
		}

		due := AddDays(today, s.policy.LoanPeriodDays)
		l.Status = model.LoanBorrowed
		l.LoanedAt = &today
		l.DueAt = &due
		l.ApprovedBy = &c.UserID
		l.ApprovedAt = &now
		if err := store.UpdateLoan(ctx, tx, l); err != nil {
			return err
		}
		loan = l
		return nil
	})
	if err != nil {
		return nil, conflict("approve", err)
	}

	transition("approved")
	s.logger.Info("loan approved", "user", c.Username, "loan", loan.ID, "book", loan.BookID, "member", loan.MemberID)
	return s.present(loan, today), nil
}

// DefaultRejectReason is recorded when an admin rejects without a reason.
const DefaultRejectReason = "Loan request rejected"

// RejectLoan declines a pending request.
func (s *Service) RejectLoan(ctx context.Context, c Caller, loanID int64, reason string) (*model.Loan, error) {
	if err := requireAdmin(c); err != nil {
		return nil, err
	}
	if reason == "" {
		reason = DefaultRejectReason
	}

	now := s.clock.Now()

	var loan *model.Loan
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		l, err := s.loadLoan(ctx, tx, c, loanID)
		if err != nil {
			return err
		}
		if l.Status != model.LoanPending {
			return ErrNotPending
		}

		l.Status = model.LoanRejected
		l.Notes = reason
		l.ApprovedBy = &c.UserID
		l.ApprovedAt = &now
		if err := store.UpdateLoan(ctx, tx, l); err != nil {
			return err
		}
		loan = l
		return nil
	})
	if err != nil {
		return nil, conflict("reject", err)
	}

	transition("rejected")
	s.logger.Info("loan rejected", "user", c.Username, "loan", loan.ID, "reason", reason)
	return loan, nil
}

// ReturnLoan records the return of a borrowed copy. Members may return their
// own loans; only admins may backdate the return with returnedAt. A late
// return creates the loan's fine, or resets an existing one to unpaid.
func (s *Service) ReturnLoan(ctx context.Context, c Caller, loanID int64, returnedAt *time.Time) (*model.Loan, error) {
	if returnedAt != nil && !c.IsAdmin() {
		return nil, ErrAdminOnly
	}

	today := s.Today()
	returned := today
	if returnedAt != nil {
		returned = CivilDate(*returnedAt, time.UTC)
		if returned.After(today) {
			return nil, validationError("return date %s is in the future", store.FormatDate(returned))
		}
	}

	var (
		loan     *model.Loan
		daysLate int
	)
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		l, err := s.loadLoan(ctx, tx, c, loanID)
		if err != nil {
			return err
		}
		if !isHolding(l.Status) || l.ReturnedAt != nil {
			return ErrNotActive
		}
		if l.LoanedAt != nil && returned.Before(*l.LoanedAt) {
			return validationError("return date %s is before the loan date %s",
				store.FormatDate(returned), store.FormatDate(*l.LoanedAt))
		}

		l.Status = model.LoanReturned
		l.ReturnedAt = &returned
		if err := store.UpdateLoan(ctx, tx, l); err != nil {
			return err
		}

		// An on-time return leaves any existing fine as it is.
		if l.DueAt != nil {
			daysLate = DaysLate(returned, *l.DueAt)
		}
		if daysLate > 0 {
			amount := FineAmount(daysLate, s.policy.FinePerDay)
			fine, err := store.UpsertFineForLoan(ctx, tx, l.ID, amount, lateNote(daysLate))
			if err != nil {
				return err
			}
			l.Fine = fine
		}
		loan = l
		return nil
	})
	if err != nil {
		return nil, conflict("return", err)
	}

	transition("returned")
	if loan.Fine != nil && daysLate > 0 {
		recordAccrual(loan.Fine.Amount)
		s.logger.Info("loan returned late", "user", c.Username, "loan", loan.ID, "days_late", daysLate,
			"fine", loan.Fine.Amount)
	} else {
		s.logger.Info("loan returned", "user", c.Username, "loan", loan.ID)
	}
	return loan, nil
}

// ExtendLoan moves the due date of a loan still holding a copy by days.
// The stored status is reset to borrowed; whether the loan reads as
// overdue is derived from the new due date.
func (s *Service) ExtendLoan(ctx context.Context, c Caller, loanID int64, days int) (*model.Loan, error) {
	if err := requireAdmin(c); err != nil {
		return nil, err
	}
	if days < 1 || days > s.policy.MaxExtensionDays {
		return nil, validationError("extension must be between 1 and %d days, got %d", s.policy.MaxExtensionDays, days)
	}

	today := s.Today()

	var loan *model.Loan
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		l, err := s.loadLoan(ctx, tx, c, loanID)
		if err != nil {
			return err
		}
		if !isHolding(l.Status) || l.ReturnedAt != nil || l.DueAt == nil {
			return ErrNotActive
		}

		due := AddDays(*l.DueAt, days)
		l.DueAt = &due
		l.Status = model.LoanBorrowed
		if err := store.UpdateLoan(ctx, tx, l); err != nil {
			return err
		}
		loan = l
		return nil
	})
	if err != nil {
		return nil, conflict("extend", err)
	}

	transition("extended")
	s.logger.Info("loan extended", "user", c.Username, "loan", loan.ID, "days", days,
		"due", store.FormatDate(*loan.DueAt))
	return s.present(loan, today), nil
}

// DeleteLoan removes a returned loan whose fine, if any, has been paid.
func (s *Service) DeleteLoan(ctx context.Context, c Caller, loanID int64) error {
	if err := requireAdmin(c); err != nil {
		return err
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		l, err := s.loadLoan(ctx, tx, c, loanID)
		if err != nil {
			return err
		}
		if l.Status != model.LoanReturned {
			return ErrNotReturned
		}
		if l.Fine != nil && l.Fine.Status == model.FineUnpaid {
			return ErrUnpaidFine
		}
		return store.DeleteLoan(ctx, tx, l.ID)
	})
	if err != nil {
		return conflict("delete", err)
	}

	transition("deleted")
	s.logger.Info("loan deleted", "user", c.Username, "loan", loanID)
	return nil
}

// GetLoan returns a loan the caller may see.
func (s *Service) GetLoan(ctx context.Context, c Caller, loanID int64) (*model.Loan, error) {
	l, err := s.loadLoan(ctx, s.db, c, loanID)
	if err != nil {
		return nil, err
	}
	return s.present(l, s.Today()), nil
}

// LoanQuery filters ListLoans. Status may be any loan status; "overdue" and
// "borrowed" match the derived state.
type LoanQuery struct {
	MemberID   int64
	BookID     int64
	Status     string
	DueFrom    *time.Time
	DueTo      *time.Time
	ActiveOnly bool
	Limit      uint
	Offset     uint
}

// LoanPage is one page of loans plus the total number of matches.
type LoanPage struct {
	Loans []model.Loan `json:"loans"`
	Total int          `json:"total"`
}

// ListLoans lists loans within the caller's scope: all loans for admins,
// their own for members.
func (s *Service) ListLoans(ctx context.Context, c Caller, q LoanQuery) (*LoanPage, error) {
	scope, err := c.Scope()
	if err != nil {
		return nil, err
	}
	memberID, err := scope.filter(q.MemberID)
	if err != nil {
		return nil, err
	}
	if q.Status != "" && !model.ValidLoanStatus(q.Status) {
		return nil, validationError("unknown loan status %q", q.Status)
	}

	today := s.Today()
	f := store.LoanFilter{
		MemberID:   memberID,
		BookID:     q.BookID,
		Status:     q.Status,
		Today:      store.FormatDate(today),
		ActiveOnly: q.ActiveOnly,
		Page:       store.Page{Limit: q.Limit, Offset: q.Offset},
	}
	if q.DueFrom != nil {
		f.DueFrom = store.FormatDate(*q.DueFrom)
	}
	if q.DueTo != nil {
		f.DueTo = store.FormatDate(*q.DueTo)
	}

	loans, total, err := store.ListLoans(ctx, s.db, f)
	if err != nil {
		return nil, err
	}
	for i := range loans {
		s.present(&loans[i], today)
	}
	if loans == nil {
		loans = []model.Loan{}
	}
	return &LoanPage{Loans: loans, Total: total}, nil
}
