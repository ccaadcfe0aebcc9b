package store

import (
	"context"
	"testing"

	"github.com/erazemk/knjiznica/internal/db"
	"github.com/erazemk/knjiznica/internal/model"
)

func TestCreateBook_DuplicateISBN(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	b := createTestBook(t, database, "Alamut", "isbn-1", 1)

	_, err := CreateBook(ctx, database, BookInput{
		CategoryID: b.CategoryID, AuthorID: b.AuthorID, Title: "Copy", ISBN: "isbn-1", Stock: 1,
	})
	if !IsUniqueViolation(err) {
		t.Fatalf("expected unique violation, got %v", err)
	}
}

func TestGetBook_AvailableCopies(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	b := createTestBook(t, database, "Alamut", "isbn-1", 2)
	m1 := createTestMember(t, database, "ana")
	m2 := createTestMember(t, database, "bojan")

	createTestLoan(t, database, m1.ID, b.ID, model.LoanBorrowed, "2024-01-01", "2024-01-08")
	createTestLoan(t, database, m2.ID, b.ID, model.LoanPending, "", "")

	got, err := GetBook(ctx, database, b.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.ActiveLoans != 1 || got.Available != 1 {
		t.Errorf("expected 1 active / 1 available, got %d / %d", got.ActiveLoans, got.Available)
	}
	if got.AuthorName != "Author of Alamut" || got.CategoryName != "Category of Alamut" {
		t.Errorf("relations not joined: %+v", got)
	}

	n, err := CountActiveLoans(ctx, database, b.ID)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("CountActiveLoans = %d, want 1", n)
	}
}

func TestAvailableCopies_Clamped(t *testing.T) {
	b := model.Book{Stock: 1, ActiveLoans: 3}
	if got := b.AvailableCopies(); got != 0 {
		t.Errorf("AvailableCopies = %d, want 0", got)
	}
}

func TestListBooks_Filters(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	alamut := createTestBook(t, database, "Alamut", "isbn-1", 1)
	createTestBook(t, database, "Cvetje v jeseni", "isbn-2", 3)
	createTestBook(t, database, "Deseti brat", "isbn-3", 2)
	m := createTestMember(t, database, "ana")
	createTestLoan(t, database, m.ID, alamut.ID, model.LoanBorrowed, "2024-01-01", "2024-01-08")

	books, total, err := ListBooks(ctx, database, BookFilter{Search: "brat"})
	if err != nil {
		t.Fatal(err)
	}
	if total != 1 || len(books) != 1 || books[0].Title != "Deseti brat" {
		t.Errorf("search returned %d/%d: %+v", len(books), total, books)
	}

	books, total, _ = ListBooks(ctx, database, BookFilter{AvailableOnly: true})
	if total != 2 || len(books) != 2 {
		t.Errorf("expected 2 available books, got %d", total)
	}

	books, total, _ = ListBooks(ctx, database, BookFilter{Page: Page{Limit: 2, Offset: 2}})
	if total != 3 || len(books) != 1 || books[0].Title != "Deseti brat" {
		t.Errorf("pagination returned %d/%d: %+v", len(books), total, books)
	}

	books, _, _ = ListBooks(ctx, database, BookFilter{AuthorID: alamut.AuthorID})
	if len(books) != 1 || books[0].ID != alamut.ID {
		t.Errorf("author filter returned %+v", books)
	}
}

func TestListBooks_SearchIsLiteral(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	createTestBook(t, database, "100% Slovenian", "isbn_a", 1)
	createTestBook(t, database, "1000 Slovenian Words", "isbn-b", 1)

	books, total, err := ListBooks(ctx, database, BookFilter{Search: "100%"})
	if err != nil {
		t.Fatal(err)
	}
	if total != 1 || len(books) != 1 || books[0].Title != "100% Slovenian" {
		t.Errorf("%% matched as wildcard: %d/%d %+v", len(books), total, books)
	}

	books, total, err = ListBooks(ctx, database, BookFilter{Search: "isbn_"})
	if err != nil {
		t.Fatal(err)
	}
	if total != 1 || len(books) != 1 || books[0].ISBN != "isbn_a" {
		t.Errorf("_ matched as wildcard: %d/%d %+v", len(books), total, books)
	}

	_, total, _ = ListBooks(ctx, database, BookFilter{Search: `\`})
	if total != 0 {
		t.Errorf("backslash search matched %d books", total)
	}
}

func TestAuthorAndCategoryInUse(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	b := createTestBook(t, database, "Alamut", "isbn-1", 1)

	used, err := AuthorHasBooks(ctx, database, b.AuthorID)
	if err != nil || !used {
		t.Errorf("AuthorHasBooks = %v, %v", used, err)
	}
	used, err = CategoryHasBooks(ctx, database, b.CategoryID)
	if err != nil || !used {
		t.Errorf("CategoryHasBooks = %v, %v", used, err)
	}

	a, _ := CreateAuthor(ctx, database, "Unused", "")
	used, _ = AuthorHasBooks(ctx, database, a.ID)
	if used {
		t.Error("expected unused author")
	}
}

func TestBookCover(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	b := createTestBook(t, database, "Alamut", "isbn-1", 1)

	data, _, err := GetBookCover(ctx, database, b.ID)
	if err != nil {
		t.Fatal(err)
	}
	if data != nil {
		t.Error("expected no cover")
	}

	if err := SetBookCover(ctx, database, b.ID, []byte{0xff, 0xd8}, "image/jpeg"); err != nil {
		t.Fatal(err)
	}
	data, mime, _ := GetBookCover(ctx, database, b.ID)
	if len(data) != 2 || mime != "image/jpeg" {
		t.Errorf("unexpected cover %v %q", data, mime)
	}
}
