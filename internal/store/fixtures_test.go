package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/erazemk/knjiznica/internal/model"
)

func createTestMember(t *testing.T, database *sql.DB, username string) *model.Member {
	t.Helper()
	ctx := context.Background()

	u, err := CreateUser(ctx, database, username, "Name "+username, username+"@example.com", "hash", model.RoleMember)
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	m, err := CreateMember(ctx, database, u.ID, "", "", "", "2024-01-01")
	if err != nil {
		t.Fatalf("CreateMember: %v", err)
	}
	return m
}

func createTestBook(t *testing.T, database *sql.DB, title, isbn string, stock int) *model.Book {
	t.Helper()
	ctx := context.Background()

	a, err := CreateAuthor(ctx, database, "Author of "+title, "")
	if err != nil {
		t.Fatalf("CreateAuthor: %v", err)
	}
	c, err := CreateCategory(ctx, database, "Category of "+title, "")
	if err != nil {
		t.Fatalf("CreateCategory: %v", err)
	}
	b, err := CreateBook(ctx, database, BookInput{
		CategoryID: c.ID, AuthorID: a.ID, Title: title, ISBN: isbn, Stock: stock,
	})
	if err != nil {
		t.Fatalf("CreateBook: %v", err)
	}
	return b
}

func date(s string) *time.Time {
	t, err := time.Parse(model.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return &t
}

func createTestLoan(t *testing.T, database *sql.DB, memberID, bookID int64, status, loanedAt, dueAt string) *model.Loan {
	t.Helper()
	l := &model.Loan{BookID: bookID, MemberID: memberID, Status: status}
	if loanedAt != "" {
		l.LoanedAt = date(loanedAt)
	}
	if dueAt != "" {
		l.DueAt = date(dueAt)
	}
	created, err := CreateLoan(context.Background(), database, l)
	if err != nil {
		t.Fatalf("CreateLoan: %v", err)
	}
	return created
}
