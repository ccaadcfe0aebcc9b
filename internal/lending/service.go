// Package lending implements the loan lifecycle: requests, grants,
// approvals, returns, extensions, fine accrual and the due-date projections
// built on top of them.
package lending

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/erazemk/knjiznica/internal/metrics"
	"github.com/erazemk/knjiznica/internal/model"
	"github.com/erazemk/knjiznica/internal/store"
)

// Service runs lending operations against the database.
type Service struct {
	db     *sql.DB
	clock  Clock
	policy Policy
	logger *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the system clock.
func WithClock(c Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithPolicy overrides the default lending rules.
func WithPolicy(p Policy) Option {
	return func(s *Service) {
		if p.Location == nil {
			p.Location = time.UTC
		}
		s.policy = p
	}
}

// WithLogger sets the logger used for audit lines.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewService creates a lending service.
func NewService(db *sql.DB, opts ...Option) *Service {
	s := &Service{
		db:     db,
		clock:  NewSystemClock(),
		policy: DefaultPolicy(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Policy returns the rules the service applies.
func (s *Service) Policy() Policy {
	return s.policy
}

// Today returns the current calendar day in the policy's time zone.
func (s *Service) Today() time.Time {
	return CivilDate(s.clock.Now(), s.policy.Location)
}

// withTx runs fn in a write transaction, retrying on database contention.
func (s *Service) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	return store.WithTx(ctx, s.db, fn)
}

// loadLoan fetches a loan and checks the caller may see it.
func (s *Service) loadLoan(ctx context.Context, db store.DBTX, c Caller, id int64) (*model.Loan, error) {
	l, err := store.GetLoan(ctx, db, id)
	if err != nil {
		return nil, err
	}
	if l == nil {
		return nil, ErrLoanNotFound
	}
	if !c.IsAdmin() && (c.MemberID == 0 || l.MemberID != c.MemberID) {
		return nil, ErrNotYourLoan
	}
	return l, nil
}

// present fills derived fields before a loan leaves the engine.
func (s *Service) present(l *model.Loan, today time.Time) *model.Loan {
	l.Status = DeriveStatus(l, today)
	return l
}

// checkBorrowable verifies the book exists, has a free copy and that the
// member has no open loan of it. It must run inside the transaction that
// creates or activates the loan.
func checkBorrowable(ctx context.Context, tx *sql.Tx, memberID, bookID int64, checkDuplicate bool) error {
	book, err := store.GetBook(ctx, tx, bookID)
	if err != nil {
		return err
	}
	if book == nil {
		return ErrBookNotFound
	}

	active, err := store.CountActiveLoans(ctx, tx, bookID)
	if err != nil {
		return err
	}
	if book.Stock-active <= 0 {
		return ErrNoCopiesAvailable
	}

	if checkDuplicate {
		open, err := store.HasOpenLoan(ctx, tx, memberID, bookID)
		if err != nil {
			return err
		}
		if open {
			return ErrDuplicateLoan
		}
	}
	return nil
}

// conflict records a refused operation before returning err unchanged.
func conflict(op string, err error) error {
	if errors.Is(err, ErrConflict) {
		metrics.LoanConflicts.WithLabelValues(op).Inc()
	}
	return err
}

func transition(action string) {
	metrics.LoanTransitions.WithLabelValues(action).Inc()
}
