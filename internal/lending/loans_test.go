package lending

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/knjiznica/internal/model"
	"github.com/erazemk/knjiznica/internal/store"
)

func TestRequestLoan_CreatesPending(t *testing.T) {
	f := newFixture(t, "2024-01-10")
	ctx := context.Background()
	ana := f.member(t, "ana")
	b := f.book(t, "isbn-1", 1)

	l, err := f.svc.RequestLoan(ctx, ana, b.ID, "for a seminar")
	require.NoError(t, err)
	assert.Equal(t, model.LoanPending, l.Status)
	assert.Nil(t, l.LoanedAt)
	assert.Nil(t, l.DueAt)
	assert.Equal(t, ana.MemberID, l.MemberID)

	// A pending request does not hold a copy.
	assert.Equal(t, 1, f.available(t, b.ID))
}

func TestRequestLoan_Preconditions(t *testing.T) {
	f := newFixture(t, "2024-01-10")
	ctx := context.Background()
	ana := f.member(t, "ana")
	bojan := f.member(t, "bojan")
	b := f.book(t, "isbn-1", 1)

	_, err := f.svc.RequestLoan(ctx, ana, 9999, "")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.svc.RequestLoan(ctx, ana, b.ID, "")
	require.NoError(t, err)
	_, err = f.svc.RequestLoan(ctx, ana, b.ID, "")
	assert.ErrorIs(t, err, ErrDuplicateLoan)

	_, err = f.svc.GrantLoan(ctx, f.admin, GrantInput{MemberID: bojan.MemberID, BookID: b.ID})
	require.NoError(t, err)

	carla := f.member(t, "carla")
	_, err = f.svc.RequestLoan(ctx, carla, b.ID, "")
	assert.ErrorIs(t, err, ErrNoCopiesAvailable)
	assert.ErrorIs(t, err, ErrConflict)

	_, err = f.svc.RequestLoan(ctx, f.admin, b.ID, "")
	assert.ErrorIs(t, err, ErrNoMemberProfile)
}

func TestGrantLoan_SetsDatesAndApprover(t *testing.T) {
	f := newFixture(t, "2024-01-10")
	ctx := context.Background()
	ana := f.member(t, "ana")
	b := f.book(t, "isbn-1", 2)

	l, err := f.svc.GrantLoan(ctx, f.admin, GrantInput{MemberID: ana.MemberID, BookID: b.ID})
	require.NoError(t, err)
	assert.Equal(t, model.LoanBorrowed, l.Status)
	assert.Equal(t, day("2024-01-10"), *l.LoanedAt)
	assert.Equal(t, day("2024-01-17"), *l.DueAt)
	require.NotNil(t, l.ApprovedBy)
	assert.Equal(t, f.admin.UserID, *l.ApprovedBy)
	assert.NotNil(t, l.ApprovedAt)
	assert.Equal(t, 1, f.available(t, b.ID))
}

func TestGrantLoan_Preconditions(t *testing.T) {
	f := newFixture(t, "2024-01-10")
	ctx := context.Background()
	ana := f.member(t, "ana")
	b := f.book(t, "isbn-1", 3)

	_, err := f.svc.GrantLoan(ctx, ana, GrantInput{MemberID: ana.MemberID, BookID: b.ID})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.GrantLoan(ctx, f.admin, GrantInput{MemberID: 9999, BookID: b.ID})
	assert.ErrorIs(t, err, ErrMemberNotFound)

	_, err = f.svc.GrantLoan(ctx, f.admin, GrantInput{BookID: b.ID})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.svc.GrantLoan(ctx, f.admin, GrantInput{MemberID: ana.MemberID, BookID: b.ID})
	require.NoError(t, err)
	_, err = f.svc.GrantLoan(ctx, f.admin, GrantInput{MemberID: ana.MemberID, BookID: b.ID})
	assert.ErrorIs(t, err, ErrDuplicateLoan)
}

func TestNoDuplicateActiveLoans_OtherMembersUnaffected(t *testing.T) {
	f := newFixture(t, "2024-01-10")
	ctx := context.Background()
	ana := f.member(t, "ana")
	bojan := f.member(t, "bojan")
	b := f.book(t, "isbn-1", 3)

	_, err := f.svc.GrantLoan(ctx, f.admin, GrantInput{MemberID: bojan.MemberID, BookID: b.ID})
	require.NoError(t, err)
	_, err = f.svc.GrantLoan(ctx, f.admin, GrantInput{MemberID: ana.MemberID, BookID: b.ID})
	require.NoError(t, err)

	_, err = f.svc.RequestLoan(ctx, ana, b.ID, "")
	assert.ErrorIs(t, err, ErrDuplicateLoan)
}

func TestApproveLoan(t *testing.T) {
	f := newFixture(t, "2024-01-10")
	ctx := context.Background()
	ana := f.member(t, "ana")
	b := f.book(t, "isbn-1", 1)

	req, err := f.svc.RequestLoan(ctx, ana, b.ID, "")
	require.NoError(t, err)

	_, err = f.svc.ApproveLoan(ctx, ana, req.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	l, err := f.at("2024-01-11").ApproveLoan(ctx, f.admin, req.ID)
	require.NoError(t, err)
	assert.Equal(t, model.LoanBorrowed, l.Status)
	assert.Equal(t, day("2024-01-11"), *l.LoanedAt)
	assert.Equal(t, day("2024-01-18"), *l.DueAt)
	assert.Equal(t, f.admin.UserID, *l.ApprovedBy)
	assert.Equal(t, 0, f.available(t, b.ID))

	_, err = f.svc.ApproveLoan(ctx, f.admin, req.ID)
	assert.ErrorIs(t, err, ErrNotPending)

	_, err = f.svc.ApproveLoan(ctx, f.admin, 9999)
	assert.ErrorIs(t, err, ErrLoanNotFound)
}

func TestApproveLoan_RechecksAvailability(t *testing.T) {
	f := newFixture(t, "2024-01-10")
	ctx := context.Background()
	ana := f.member(t, "ana")
	bojan := f.member(t, "bojan")
	b := f.book(t, "isbn-1", 1)

	req, err := f.svc.RequestLoan(ctx, ana, b.ID, "")
	require.NoError(t, err)

	_, err = f.svc.GrantLoan(ctx, f.admin, GrantInput{MemberID: bojan.MemberID, BookID: b.ID})
	require.NoError(t, err)

	_, err = f.svc.ApproveLoan(ctx, f.admin, req.ID)
	assert.ErrorIs(t, err, ErrNoCopiesAvailable)

	got, err := f.svc.GetLoan(ctx, f.admin, req.ID)
	require.NoError(t, err)
	assert.Equal(t, model.LoanPending, got.Status)
	assert.Nil(t, got.DueAt)
}

func TestApproveLoan_ConcurrentLastCopy(t *testing.T) {
	f := newFixture(t, "2024-01-10")
	ctx := context.Background()
	b := f.book(t, "isbn-1", 1)

	const n = 6
	var ids []int64
	for i := 0; i < n; i++ {
		m := f.member(t, "member"+string(rune('a'+i)))
		req, err := f.svc.RequestLoan(ctx, m, b.ID, "")
		require.NoError(t, err)
		ids = append(ids, req.ID)
	}

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id int64) {
			defer wg.Done()
			_, errs[i] = f.svc.ApproveLoan(ctx, f.admin, id)
		}(i, id)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, ErrNoCopiesAvailable)
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 0, f.available(t, b.ID))

	active, err := store.CountActiveLoans(ctx, f.db, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, active)
}

func TestGrantLoan_ConcurrentLastCopy(t *testing.T) {
	f := newFixture(t, "2024-01-10")
	ctx := context.Background()
	b := f.book(t, "isbn-1", 2)

	const n = 5
	members := make([]Caller, n)
	for i := range members {
		members[i] = f.member(t, "member"+string(rune('a'+i)))
	}

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i, m := range members {
		wg.Add(1)
		go func(i int, m Caller) {
			defer wg.Done()
			_, errs[i] = f.svc.GrantLoan(ctx, f.admin, GrantInput{MemberID: m.MemberID, BookID: b.ID})
		}(i, m)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		}
	}
	assert.Equal(t, 2, succeeded)
	assert.Equal(t, 0, f.available(t, b.ID))
}

func TestRejectLoan(t *testing.T) {
	f := newFixture(t, "2024-01-10")
	ctx := context.Background()
	ana := f.member(t, "ana")
	b := f.book(t, "isbn-1", 1)

	req, err := f.svc.RequestLoan(ctx, ana, b.ID, "")
	require.NoError(t, err)

	l, err := f.svc.RejectLoan(ctx, f.admin, req.ID, "")
	require.NoError(t, err)
	assert.Equal(t, model.LoanRejected, l.Status)
	assert.Equal(t, DefaultRejectReason, l.Notes)
	assert.NotNil(t, l.ApprovedAt)

	_, err = f.svc.RejectLoan(ctx, f.admin, req.ID, "again")
	assert.ErrorIs(t, err, ErrNotPending)

	// A rejected request no longer blocks a new one.
	_, err = f.svc.RequestLoan(ctx, ana, b.ID, "")
	assert.NoError(t, err)
}

func TestReturnLoan_LateCreatesFine(t *testing.T) {
	f := newFixture(t, "2024-01-03")
	ctx := context.Background()
	ana := f.member(t, "ana")
	b := f.book(t, "isbn-1", 1)

	l, err := f.svc.GrantLoan(ctx, f.admin, GrantInput{MemberID: ana.MemberID, BookID: b.ID})
	require.NoError(t, err)
	require.Equal(t, day("2024-01-10"), *l.DueAt)

	returned, err := f.at("2024-01-15").ReturnLoan(ctx, ana, l.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, model.LoanReturned, returned.Status)
	assert.Equal(t, day("2024-01-15"), *returned.ReturnedAt)
	require.NotNil(t, returned.Fine)
	assert.Equal(t, int64(10000), returned.Fine.Amount)
	assert.Equal(t, model.FineUnpaid, returned.Fine.Status)
	assert.Equal(t, "Late return by 5 day(s)", returned.Fine.Note)
	assert.Equal(t, 1, f.available(t, b.ID))

	_, err = f.svc.ReturnLoan(ctx, ana, l.ID, nil)
	assert.ErrorIs(t, err, ErrNotActive)
}

func TestReturnLoan_OnTimeNoFine(t *testing.T) {
	f := newFixture(t, "2024-01-03")
	ctx := context.Background()
	ana := f.member(t, "ana")
	b := f.book(t, "isbn-1", 1)

	l, err := f.svc.GrantLoan(ctx, f.admin, GrantInput{MemberID: ana.MemberID, BookID: b.ID})
	require.NoError(t, err)

	returned, err := f.at("2024-01-10").ReturnLoan(ctx, ana, l.ID, nil)
	require.NoError(t, err)
	assert.Nil(t, returned.Fine)

	fine, err := store.GetFineByLoan(ctx, f.db, l.ID)
	require.NoError(t, err)
	assert.Nil(t, fine)
}

func TestReturnLoan_OnTimeKeepsExistingFine(t *testing.T) {
	f := newFixture(t, "2024-01-03")
	ctx := context.Background()
	ana := f.member(t, "ana")
	b := f.book(t, "isbn-1", 1)

	l, err := f.svc.GrantLoan(ctx, f.admin, GrantInput{MemberID: ana.MemberID, BookID: b.ID})
	require.NoError(t, err)
	amount := int64(500)
	_, err = f.svc.CreateFine(ctx, f.admin, CreateFineInput{LoanID: l.ID, Amount: &amount, Note: "damaged cover"})
	require.NoError(t, err)

	returned, err := f.svc.ReturnLoan(ctx, ana, l.ID, nil)
	require.NoError(t, err)
	require.NotNil(t, returned.Fine)
	assert.Equal(t, int64(500), returned.Fine.Amount)
	assert.Equal(t, "damaged cover", returned.Fine.Note)
}

func TestReturnLoan_Access(t *testing.T) {
	f := newFixture(t, "2024-01-03")
	ctx := context.Background()
	ana := f.member(t, "ana")
	bojan := f.member(t, "bojan")
	b := f.book(t, "isbn-1", 1)

	l, err := f.svc.GrantLoan(ctx, f.admin, GrantInput{MemberID: ana.MemberID, BookID: b.ID})
	require.NoError(t, err)

	_, err = f.svc.ReturnLoan(ctx, bojan, l.ID, nil)
	assert.ErrorIs(t, err, ErrForbidden)

	backdated := day("2024-01-02")
	_, err = f.svc.ReturnLoan(ctx, ana, l.ID, &backdated)
	assert.ErrorIs(t, err, ErrForbidden)

	// Before the loan started.
	_, err = f.svc.ReturnLoan(ctx, f.admin, l.ID, &backdated)
	assert.ErrorIs(t, err, ErrValidation)

	future := day("2024-02-01")
	_, err = f.svc.ReturnLoan(ctx, f.admin, l.ID, &future)
	assert.ErrorIs(t, err, ErrValidation)

	late := day("2024-01-12")
	returned, err := f.at("2024-01-20").ReturnLoan(ctx, f.admin, l.ID, &late)
	require.NoError(t, err)
	assert.Equal(t, int64(4000), returned.Fine.Amount)
}

func TestExtendLoan(t *testing.T) {
	f := newFixture(t, "2024-01-03")
	ctx := context.Background()
	ana := f.member(t, "ana")
	b := f.book(t, "isbn-1", 1)

	l, err := f.svc.GrantLoan(ctx, f.admin, GrantInput{MemberID: ana.MemberID, BookID: b.ID})
	require.NoError(t, err)

	extended, err := f.svc.ExtendLoan(ctx, f.admin, l.ID, 10)
	require.NoError(t, err)
	assert.Equal(t, day("2024-01-20"), *extended.DueAt)
	assert.Equal(t, model.LoanBorrowed, extended.Status)

	for _, days := range []int{0, 31, -1} {
		_, err = f.svc.ExtendLoan(ctx, f.admin, l.ID, days)
		assert.ErrorIs(t, err, ErrValidation, "days=%d", days)
	}

	_, err = f.svc.ExtendLoan(ctx, ana, l.ID, 5)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestExtendLoan_Overdue(t *testing.T) {
	f := newFixture(t, "2024-01-03")
	ctx := context.Background()
	ana := f.member(t, "ana")
	b := f.book(t, "isbn-1", 1)

	l, err := f.svc.GrantLoan(ctx, f.admin, GrantInput{MemberID: ana.MemberID, BookID: b.ID})
	require.NoError(t, err)

	later := f.at("2024-01-12")
	got, err := later.GetLoan(ctx, ana, l.ID)
	require.NoError(t, err)
	assert.Equal(t, model.LoanOverdue, got.Status)

	extended, err := later.ExtendLoan(ctx, f.admin, l.ID, 5)
	require.NoError(t, err)
	assert.Equal(t, day("2024-01-15"), *extended.DueAt)
	assert.Equal(t, model.LoanBorrowed, extended.Status)

	again, err := later.ExtendLoan(ctx, f.admin, l.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, day("2024-01-16"), *again.DueAt)
}

func TestExtendLoan_RejectsTerminal(t *testing.T) {
	f := newFixture(t, "2024-01-03")
	ctx := context.Background()
	ana := f.member(t, "ana")
	b := f.book(t, "isbn-1", 1)

	req, err := f.svc.RequestLoan(ctx, ana, b.ID, "")
	require.NoError(t, err)
	_, err = f.svc.ExtendLoan(ctx, f.admin, req.ID, 5)
	assert.ErrorIs(t, err, ErrNotActive)

	l, err := f.svc.ApproveLoan(ctx, f.admin, req.ID)
	require.NoError(t, err)
	_, err = f.svc.ReturnLoan(ctx, ana, l.ID, nil)
	require.NoError(t, err)
	_, err = f.svc.ExtendLoan(ctx, f.admin, l.ID, 5)
	assert.ErrorIs(t, err, ErrNotActive)
}

func TestDeleteLoan_TerminalGuard(t *testing.T) {
	f := newFixture(t, "2024-01-03")
	ctx := context.Background()
	ana := f.member(t, "ana")
	b1 := f.book(t, "isbn-1", 1)
	b2 := f.book(t, "isbn-2", 1)
	b3 := f.book(t, "isbn-3", 1)

	borrowed, err := f.svc.GrantLoan(ctx, f.admin, GrantInput{MemberID: ana.MemberID, BookID: b1.ID})
	require.NoError(t, err)
	assert.ErrorIs(t, f.svc.DeleteLoan(ctx, f.admin, borrowed.ID), ErrNotReturned)

	late, err := f.svc.GrantLoan(ctx, f.admin, GrantInput{MemberID: ana.MemberID, BookID: b2.ID})
	require.NoError(t, err)
	returned, err := f.at("2024-01-12").ReturnLoan(ctx, ana, late.ID, nil)
	require.NoError(t, err)
	require.NotNil(t, returned.Fine)
	assert.ErrorIs(t, f.svc.DeleteLoan(ctx, f.admin, late.ID), ErrUnpaidFine)

	_, err = f.svc.PayFine(ctx, f.admin, returned.Fine.ID)
	require.NoError(t, err)
	assert.NoError(t, f.svc.DeleteLoan(ctx, f.admin, late.ID))

	onTime, err := f.svc.GrantLoan(ctx, f.admin, GrantInput{MemberID: ana.MemberID, BookID: b3.ID})
	require.NoError(t, err)
	_, err = f.svc.ReturnLoan(ctx, ana, onTime.ID, nil)
	require.NoError(t, err)
	assert.ErrorIs(t, f.svc.DeleteLoan(ctx, ana, onTime.ID), ErrForbidden)
	assert.NoError(t, f.svc.DeleteLoan(ctx, f.admin, onTime.ID))

	_, err = f.svc.GetLoan(ctx, f.admin, onTime.ID)
	assert.ErrorIs(t, err, ErrLoanNotFound)
}

func TestListLoans_Scope(t *testing.T) {
	f := newFixture(t, "2024-01-03")
	ctx := context.Background()
	ana := f.member(t, "ana")
	bojan := f.member(t, "bojan")
	b := f.book(t, "isbn-1", 5)

	_, err := f.svc.GrantLoan(ctx, f.admin, GrantInput{MemberID: ana.MemberID, BookID: b.ID})
	require.NoError(t, err)
	_, err = f.svc.RequestLoan(ctx, bojan, b.ID, "")
	require.NoError(t, err)

	all, err := f.svc.ListLoans(ctx, f.admin, LoanQuery{})
	require.NoError(t, err)
	assert.Equal(t, 2, all.Total)

	own, err := f.svc.ListLoans(ctx, ana, LoanQuery{})
	require.NoError(t, err)
	require.Equal(t, 1, own.Total)
	assert.Equal(t, ana.MemberID, own.Loans[0].MemberID)

	_, err = f.svc.ListLoans(ctx, ana, LoanQuery{MemberID: bojan.MemberID})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.ListLoans(ctx, f.admin, LoanQuery{Status: "lost"})
	assert.ErrorIs(t, err, ErrValidation)

	overdue, err := f.at("2024-01-11").ListLoans(ctx, f.admin, LoanQuery{Status: model.LoanOverdue})
	require.NoError(t, err)
	require.Equal(t, 1, overdue.Total)
	assert.Equal(t, model.LoanOverdue, overdue.Loans[0].Status)

	_, err = f.svc.GetLoan(ctx, bojan, own.Loans[0].ID)
	assert.ErrorIs(t, err, ErrForbidden)
}
