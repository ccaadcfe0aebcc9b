package lending

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNearDueAndOverdue(t *testing.T) {
	f := newFixture(t, "2024-01-01")
	ctx := context.Background()
	ana := f.member(t, "ana")
	bojan := f.member(t, "bojan")

	grant := func(on string, m Caller, isbn string) int64 {
		b := f.book(t, isbn, 1)
		l, err := f.at(on).GrantLoan(ctx, f.admin, GrantInput{MemberID: m.MemberID, BookID: b.ID})
		require.NoError(t, err)
		return l.ID
	}
	overdueID := grant("2024-01-01", ana, "isbn-1") // due 01-08
	dueSoonID := grant("2024-01-05", ana, "isbn-2") // due 01-12
	grant("2024-01-09", ana, "isbn-3")              // due 01-16
	bojanID := grant("2024-01-02", bojan, "isbn-4") // due 01-09

	svc := f.at("2024-01-10")

	near, err := svc.NearDue(ctx, ana, 0)
	require.NoError(t, err)
	require.Len(t, near, 1)
	assert.Equal(t, dueSoonID, near[0].ID)
	assert.Equal(t, 2, near[0].DaysUntilDue)

	wider, err := svc.NearDue(ctx, ana, 7)
	require.NoError(t, err)
	assert.Len(t, wider, 2)

	_, err = svc.NearDue(ctx, ana, -1)
	assert.ErrorIs(t, err, ErrValidation)

	overdue, err := svc.Overdue(ctx, ana)
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	assert.Equal(t, overdueID, overdue[0].ID)
	assert.Equal(t, 2, overdue[0].DaysOverdue)
	assert.Equal(t, "overdue", overdue[0].Status)

	all, err := svc.Overdue(ctx, f.admin)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	grouped, err := svc.OverdueByMember(ctx, f.admin)
	require.NoError(t, err)
	require.Len(t, grouped, 2)
	assert.Equal(t, ana.MemberID, grouped[0].Member.ID)
	assert.Equal(t, 1, grouped[0].LoansCount)
	assert.Equal(t, bojanID, grouped[1].Loans[0].ID)

	_, err = svc.OverdueByMember(ctx, ana)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.NearDue(ctx, Caller{Role: "member", UserID: 42}, 3)
	assert.ErrorIs(t, err, ErrNoMemberProfile)
}

func TestOverdueByMember_TotalFines(t *testing.T) {
	f := newFixture(t, "2024-01-01")
	ctx := context.Background()
	ana := f.member(t, "ana")

	for _, isbn := range []string{"isbn-1", "isbn-2"} {
		b := f.book(t, isbn, 1)
		l, err := f.svc.GrantLoan(ctx, f.admin, GrantInput{MemberID: ana.MemberID, BookID: b.ID})
		require.NoError(t, err)
		_, err = f.at("2024-01-12").CreateFine(ctx, f.admin, CreateFineInput{LoanID: l.ID})
		require.NoError(t, err)
	}

	grouped, err := f.at("2024-01-12").OverdueByMember(ctx, f.admin)
	require.NoError(t, err)
	require.Len(t, grouped, 1)
	assert.Equal(t, 2, grouped[0].LoansCount)
	assert.Equal(t, int64(16000), grouped[0].TotalFines)
}

func TestNotificationSummary(t *testing.T) {
	f := newFixture(t, "2024-01-01")
	ctx := context.Background()
	ana := f.member(t, "ana")
	bojan := f.member(t, "bojan")

	b1 := f.book(t, "isbn-1", 1)
	b2 := f.book(t, "isbn-2", 1)
	b3 := f.book(t, "isbn-3", 1)
	_, err := f.svc.GrantLoan(ctx, f.admin, GrantInput{MemberID: ana.MemberID, BookID: b1.ID})
	require.NoError(t, err)
	_, err = f.at("2024-01-05").GrantLoan(ctx, f.admin, GrantInput{MemberID: ana.MemberID, BookID: b2.ID})
	require.NoError(t, err)
	returned, err := f.svc.GrantLoan(ctx, f.admin, GrantInput{MemberID: ana.MemberID, BookID: b3.ID})
	require.NoError(t, err)
	_, err = f.at("2024-01-09").ReturnLoan(ctx, ana, returned.ID, nil)
	require.NoError(t, err)

	sum, err := f.at("2024-01-10").NotificationSummary(ctx, ana, 3)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.ActiveLoans)
	assert.Equal(t, 1, sum.NearDueLoans)
	assert.Equal(t, 1, sum.OverdueLoans)
	assert.Equal(t, 1, sum.UnpaidFines)
	assert.True(t, sum.HasNotifications)

	quiet, err := f.svc.NotificationSummary(ctx, bojan, 0)
	require.NoError(t, err)
	assert.False(t, quiet.HasNotifications)
}
