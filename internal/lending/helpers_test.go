package lending

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/erazemk/knjiznica/internal/db"
	"github.com/erazemk/knjiznica/internal/model"
	"github.com/erazemk/knjiznica/internal/store"
)

type fixture struct {
	db    *sql.DB
	svc   *Service
	admin Caller
}

func day(s string) time.Time {
	t, err := time.Parse(model.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

// newFixture opens a fresh database and a service whose clock is fixed at
// noon on today.
func newFixture(t *testing.T, today string) *fixture {
	t.Helper()
	database := db.NewTestDB(t)
	ctx := context.Background()

	u, err := store.CreateUser(ctx, database, "admin", "Admin", "", "hash", model.RoleAdmin)
	require.NoError(t, err)

	now := day(today).Add(12 * time.Hour)
	return &fixture{
		db:    database,
		svc:   NewService(database, WithClock(NewFixedClock(now))),
		admin: Caller{UserID: u.ID, Username: u.Username, Role: model.RoleAdmin},
	}
}

// at returns a service over the same database with the clock moved to day.
func (f *fixture) at(today string) *Service {
	return NewService(f.db, WithClock(NewFixedClock(day(today).Add(12*time.Hour))), WithPolicy(f.svc.Policy()))
}

func (f *fixture) member(t *testing.T, username string) Caller {
	t.Helper()
	ctx := context.Background()
	u, err := store.CreateUser(ctx, f.db, username, username, "", "hash", model.RoleMember)
	require.NoError(t, err)
	m, err := store.CreateMember(ctx, f.db, u.ID, "", "", "", "2024-01-01")
	require.NoError(t, err)
	return Caller{UserID: u.ID, Username: username, Role: model.RoleMember, MemberID: m.ID}
}

func (f *fixture) book(t *testing.T, isbn string, stock int) *model.Book {
	t.Helper()
	ctx := context.Background()
	a, err := store.CreateAuthor(ctx, f.db, "Author "+isbn, "")
	require.NoError(t, err)
	c, err := store.CreateCategory(ctx, f.db, "Category "+isbn, "")
	require.NoError(t, err)
	b, err := store.CreateBook(ctx, f.db, store.BookInput{
		CategoryID: c.ID, AuthorID: a.ID, Title: "Book " + isbn, ISBN: isbn, Stock: stock,
	})
	require.NoError(t, err)
	return b
}

func (f *fixture) available(t *testing.T, bookID int64) int {
	t.Helper()
	b, err := store.GetBook(context.Background(), f.db, bookID)
	require.NoError(t, err)
	return b.AvailableCopies()
}
