package lending

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/erazemk/knjiznica/internal/metrics"
	"github.com/erazemk/knjiznica/internal/model"
	"github.com/erazemk/knjiznica/internal/store"
)

func lateNote(daysLate int) string {
	return fmt.Sprintf("Late return by %d day(s)", daysLate)
}

func recordAccrual(amount int64) {
	metrics.FinesAccrued.Inc()
	metrics.FineAmountAccrued.Add(float64(amount))
}

// referenceDate is the day lateness is measured against: the return date,
// or today while the loan is still out.
func referenceDate(l *model.Loan, today time.Time) time.Time {
	if l.ReturnedAt != nil {
		return *l.ReturnedAt
	}
	return today
}

// CreateFineInput describes a fine an admin adds by hand. A nil Amount is
// computed from the loan's lateness.
type CreateFineInput struct {
	LoanID int64
	Amount *int64
	Note   string
}

// CreateFine attaches a fine to a loan that has none.
func (s *Service) CreateFine(ctx context.Context, c Caller, in CreateFineInput) (*model.Fine, error) {
	if err := requireAdmin(c); err != nil {
		return nil, err
	}
	if in.Amount != nil && *in.Amount < 0 {
		return nil, validationError("amount must not be negative")
	}

	today := s.Today()

	var fine *model.Fine
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		l, err := s.loadLoan(ctx, tx, c, in.LoanID)
		if err != nil {
			return err
		}
		if l.Fine != nil {
			return ErrFineExists
		}

		amount, note := int64(0), in.Note
		if in.Amount != nil {
			amount = *in.Amount
		} else {
			if l.DueAt == nil {
				return ErrNotLate
			}
			days := DaysLate(referenceDate(l, today), *l.DueAt)
			if days == 0 {
				return ErrNotLate
			}
			amount = FineAmount(days, s.policy.FinePerDay)
			if note == "" {
				note = lateNote(days)
			}
		}

		created, err := store.CreateFine(ctx, tx, l.ID, amount, model.FineUnpaid, note)
		if store.IsUniqueViolation(err) {
			return ErrFineExists
		}
		fine = created
		return err
	})
	if err != nil {
		return nil, conflict("create_fine", err)
	}

	s.logger.Info("fine created", "user", c.Username, "fine", fine.ID, "loan", in.LoanID, "amount", fine.Amount)
	return fine, nil
}

// FineUpdate carries the fields an admin may change on a fine.
type FineUpdate struct {
	Amount *int64
	Status *string
	Note   *string
}

// UpdateFine edits a fine. Amounts are never recalculated automatically.
func (s *Service) UpdateFine(ctx context.Context, c Caller, fineID int64, u FineUpdate) (*model.Fine, error) {
	if err := requireAdmin(c); err != nil {
		return nil, err
	}
	if u.Amount != nil && *u.Amount < 0 {
		return nil, validationError("amount must not be negative")
	}
	if u.Status != nil && *u.Status != model.FineUnpaid && *u.Status != model.FinePaid {
		return nil, validationError("unknown fine status %q", *u.Status)
	}

	var fine *model.Fine
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		f, err := store.GetFine(ctx, tx, fineID)
		if err != nil {
			return err
		}
		if f == nil {
			return ErrFineNotFound
		}
		if u.Amount != nil {
			f.Amount = *u.Amount
		}
		if u.Status != nil {
			f.Status = *u.Status
		}
		if u.Note != nil {
			f.Note = *u.Note
		}
		if err := store.UpdateFine(ctx, tx, f); err != nil {
			return err
		}
		fine = f
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("fine updated", "user", c.Username, "fine", fine.ID, "amount", fine.Amount, "status", fine.Status)
	return fine, nil
}

// PayFine marks an unpaid fine as paid and stamps the payment time on its note.
func (s *Service) PayFine(ctx context.Context, c Caller, fineID int64) (*model.Fine, error) {
	if err := requireAdmin(c); err != nil {
		return nil, err
	}

	now := s.clock.Now()

	var fine *model.Fine
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		f, err := store.GetFine(ctx, tx, fineID)
		if err != nil {
			return err
		}
		if f == nil {
			return ErrFineNotFound
		}
		if f.Status == model.FinePaid {
			return ErrFineAlreadyPaid
		}

		stamp := "Paid on " + now.In(s.policy.Location).Format("2006-01-02 15:04:05")
		if f.Note == "" {
			f.Note = stamp
		} else {
			f.Note += " | " + stamp
		}
		f.Status = model.FinePaid
		if err := store.UpdateFine(ctx, tx, f); err != nil {
			return err
		}
		fine = f
		return nil
	})
	if err != nil {
		return nil, conflict("pay_fine", err)
	}

	metrics.FinesPaid.Inc()
	s.logger.Info("fine paid", "user", c.Username, "fine", fine.ID, "loan", fine.LoanID, "amount", fine.Amount)
	return fine, nil
}

// DeleteFine removes a paid fine.
func (s *Service) DeleteFine(ctx context.Context, c Caller, fineID int64) error {
	if err := requireAdmin(c); err != nil {
		return err
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		f, err := store.GetFine(ctx, tx, fineID)
		if err != nil {
			return err
		}
		if f == nil {
			return ErrFineNotFound
		}
		if f.Status != model.FinePaid {
			return ErrFineNotPaid
		}
		return store.DeleteFine(ctx, tx, f.ID)
	})
	if err != nil {
		return conflict("delete_fine", err)
	}

	s.logger.Info("fine deleted", "user", c.Username, "fine", fineID)
	return nil
}

// GetFine returns a fine the caller may see.
func (s *Service) GetFine(ctx context.Context, c Caller, fineID int64) (*model.Fine, error) {
	f, err := store.GetFine(ctx, s.db, fineID)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, ErrFineNotFound
	}
	scope, err := c.Scope()
	if err != nil {
		return nil, err
	}
	if !scope.Owns(f.MemberID) {
		return nil, ErrNotYourLoan
	}
	return f, nil
}

// FineQuery filters ListFines.
type FineQuery struct {
	MemberID int64
	LoanID   int64
	Status   string
	Limit    uint
	Offset   uint
}

// FinePage is one page of fines, the total number of matches and the
// amounts summed over all matches.
type FinePage struct {
	Fines   []model.Fine      `json:"fines"`
	Total   int               `json:"total"`
	Summary model.FineSummary `json:"summary"`
}

// ListFines lists fines within the caller's scope.
func (s *Service) ListFines(ctx context.Context, c Caller, q FineQuery) (*FinePage, error) {
	scope, err := c.Scope()
	if err != nil {
		return nil, err
	}
	memberID, err := scope.filter(q.MemberID)
	if err != nil {
		return nil, err
	}
	if q.Status != "" && q.Status != model.FineUnpaid && q.Status != model.FinePaid {
		return nil, validationError("unknown fine status %q", q.Status)
	}

	f := store.FineFilter{
		MemberID: memberID,
		LoanID:   q.LoanID,
		Status:   q.Status,
		Page:     store.Page{Limit: q.Limit, Offset: q.Offset},
	}
	fines, total, err := store.ListFines(ctx, s.db, f)
	if err != nil {
		return nil, err
	}
	summary, err := store.SummarizeFines(ctx, s.db, f)
	if err != nil {
		return nil, err
	}
	if fines == nil {
		fines = []model.Fine{}
	}
	return &FinePage{Fines: fines, Total: total, Summary: *summary}, nil
}

// UnpaidFines lists every unpaid fine within the caller's scope.
func (s *Service) UnpaidFines(ctx context.Context, c Caller) (*FinePage, error) {
	return s.ListFines(ctx, c, FineQuery{Status: model.FineUnpaid})
}

// Fine preview states.
const (
	PreviewNotOverdue     = "Not overdue"
	PreviewNotReturned    = "Not returned yet"
	PreviewReturnedLate   = "Returned late"
	PreviewReturnedOnTime = "Returned on time"
)

// FinePreview is the fine a loan has accrued, or would accrue if returned today.
type FinePreview struct {
	LoanID        int64       `json:"loan_id"`
	DueAt         *time.Time  `json:"due_at"`
	ReferenceDate time.Time   `json:"reference_date"`
	Returned      bool        `json:"returned"`
	DaysLate      int         `json:"days_late"`
	FineAmount    int64       `json:"fine_amount"`
	FinePerDay    int64       `json:"fine_per_day"`
	Status        string      `json:"status"`
	ExistingFine  *model.Fine `json:"existing_fine,omitempty"`
}

// CalculateFine previews the fine for a loan without changing anything.
func (s *Service) CalculateFine(ctx context.Context, c Caller, loanID int64) (*FinePreview, error) {
	l, err := s.loadLoan(ctx, s.db, c, loanID)
	if err != nil {
		return nil, err
	}

	today := s.Today()
	ref := referenceDate(l, today)
	p := &FinePreview{
		LoanID:        l.ID,
		DueAt:         l.DueAt,
		ReferenceDate: ref,
		Returned:      l.ReturnedAt != nil,
		FinePerDay:    s.policy.FinePerDay,
		ExistingFine:  l.Fine,
	}
	if l.DueAt != nil {
		p.DaysLate = DaysLate(ref, *l.DueAt)
	}
	p.FineAmount = FineAmount(p.DaysLate, s.policy.FinePerDay)

	switch {
	case p.Returned && p.DaysLate > 0:
		p.Status = PreviewReturnedLate
	case p.Returned:
		p.Status = PreviewReturnedOnTime
	case p.DaysLate > 0:
		p.Status = PreviewNotReturned
	default:
		p.Status = PreviewNotOverdue
	}
	return p, nil
}
