package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/doug-martin/goqu/v9"

	"github.com/erazemk/knjiznica/internal/model"
)

// activeLoansExpr counts the loans currently holding a copy of b.
var activeLoansExpr = goqu.L(`(SELECT COUNT(*) FROM loans l WHERE l.book_id = b.id AND l.status IN ('borrowed', 'overdue'))`)

// BookFilter narrows ListBooks.
type BookFilter struct {
	Search        string // matched against title and ISBN
	CategoryID    int64
	AuthorID      int64
	AvailableOnly bool
	Page
}

// BookInput carries the editable fields of a book.
type BookInput struct {
	CategoryID int64
	AuthorID   int64
	Title      string
	ISBN       string
	Publisher  string
	Year       int
	Stock      int
}

func bookSelect() *goqu.SelectDataset {
	return dialect.From(goqu.T("books").As("b")).
		Join(goqu.T("authors").As("a"), goqu.On(goqu.I("a.id").Eq(goqu.I("b.author_id")))).
		Join(goqu.T("categories").As("c"), goqu.On(goqu.I("c.id").Eq(goqu.I("b.category_id")))).
		Select(
			goqu.I("b.id"), goqu.I("b.category_id"), goqu.I("b.author_id"), goqu.I("b.title"),
			goqu.I("b.isbn"), goqu.I("b.publisher"), goqu.I("b.year"), goqu.I("b.stock"),
			goqu.I("b.cover_mime"), goqu.I("b.created_at"), goqu.I("b.updated_at"),
			goqu.I("a.name"), goqu.I("c.name"), activeLoansExpr.As("active_loans"),
		)
}

// CreateBook creates a new book.
func CreateBook(ctx context.Context, db DBTX, in BookInput) (*model.Book, error) {
	result, err := db.ExecContext(ctx,
		`INSERT INTO books (category_id, author_id, title, isbn, publisher, year, stock)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		in.CategoryID, in.AuthorID, in.Title, in.ISBN, in.Publisher, in.Year, in.Stock,
	)
	if err != nil {
		return nil, fmt.Errorf("creating book: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting book id: %w", err)
	}

	return GetBook(ctx, db, id)
}

// GetBook returns a book with its author, category and active loan count.
func GetBook(ctx context.Context, db DBTX, id int64) (*model.Book, error) {
	books, err := queryBooks(ctx, db, bookSelect().Where(goqu.I("b.id").Eq(id)))
	if err != nil {
		return nil, fmt.Errorf("getting book: %w", err)
	}
	if len(books) == 0 {
		return nil, nil
	}
	return &books[0], nil
}

// GetBookByISBN returns the book with the given ISBN.
func GetBookByISBN(ctx context.Context, db DBTX, isbn string) (*model.Book, error) {
	books, err := queryBooks(ctx, db, bookSelect().Where(goqu.I("b.isbn").Eq(isbn)))
	if err != nil {
		return nil, fmt.Errorf("getting book by isbn: %w", err)
	}
	if len(books) == 0 {
		return nil, nil
	}
	return &books[0], nil
}

// ListBooks returns the books matching f and the total number of matches
// ignoring pagination.
func ListBooks(ctx context.Context, db DBTX, f BookFilter) ([]model.Book, int, error) {
	var where []goqu.Expression
	if f.Search != "" {
		like := "%" + escapeLike(f.Search) + "%"
		where = append(where, goqu.Or(
			goqu.L(`b.title LIKE ? ESCAPE '\'`, like),
			goqu.L(`b.isbn LIKE ? ESCAPE '\'`, like),
			goqu.L(`a.name LIKE ? ESCAPE '\'`, like),
		))
	}
	if f.CategoryID != 0 {
		where = append(where, goqu.I("b.category_id").Eq(f.CategoryID))
	}
	if f.AuthorID != 0 {
		where = append(where, goqu.I("b.author_id").Eq(f.AuthorID))
	}
	if f.AvailableOnly {
		where = append(where, goqu.I("b.stock").Gt(activeLoansExpr))
	}

	ds := bookSelect().Where(where...)

	total, err := countRows(ctx, db, ds)
	if err != nil {
		return nil, 0, fmt.Errorf("counting books: %w", err)
	}

	books, err := queryBooks(ctx, db, f.Page.apply(ds.Order(goqu.I("b.title").Asc(), goqu.I("b.id").Asc())))
	if err != nil {
		return nil, 0, fmt.Errorf("listing books: %w", err)
	}
	return books, total, nil
}

// UpdateBook replaces a book's editable fields.
func UpdateBook(ctx context.Context, db DBTX, id int64, in BookInput) error {
	_, err := db.ExecContext(ctx,
		`UPDATE books SET category_id = ?, author_id = ?, title = ?, isbn = ?, publisher = ?, year = ?,
		        stock = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		in.CategoryID, in.AuthorID, in.Title, in.ISBN, in.Publisher, in.Year, in.Stock, id,
	)
	if err != nil {
		return fmt.Errorf("updating book: %w", err)
	}
	return nil
}

// DeleteBook removes a book.
func DeleteBook(ctx context.Context, db DBTX, id int64) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM books WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting book: %w", err)
	}
	return nil
}

// BookHasLoans reports whether any loan, in any status, references the book.
func BookHasLoans(ctx context.Context, db DBTX, id int64) (bool, error) {
	var n int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM loans WHERE book_id = ?`, id).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("counting book loans: %w", err)
	}
	return n > 0, nil
}

// CountActiveLoans returns the number of borrowed or overdue loans of a book.
func CountActiveLoans(ctx context.Context, db DBTX, bookID int64) (int, error) {
	var n int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM loans WHERE book_id = ? AND status IN ('borrowed', 'overdue')`, bookID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting active loans: %w", err)
	}
	return n, nil
}

// SetBookCover stores the processed cover image of a book.
func SetBookCover(ctx context.Context, db DBTX, id int64, data []byte, mime string) error {
	_, err := db.ExecContext(ctx,
		`UPDATE books SET cover = ?, cover_mime = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		data, mime, id,
	)
	if err != nil {
		return fmt.Errorf("setting book cover: %w", err)
	}
	return nil
}

// GetBookCover returns a book's cover image, or nil data if there is none.
func GetBookCover(ctx context.Context, db DBTX, id int64) ([]byte, string, error) {
	var data []byte
	var mime sql.NullString
	err := db.QueryRowContext(ctx,
		`SELECT cover, cover_mime FROM books WHERE id = ?`, id,
	).Scan(&data, &mime)
	if err == sql.ErrNoRows {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("getting book cover: %w", err)
	}
	return data, mime.String, nil
}

func queryBooks(ctx context.Context, db DBTX, ds *goqu.SelectDataset) ([]model.Book, error) {
	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("building query: %w", err)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var books []model.Book
	for rows.Next() {
		var b model.Book
		var publisher, coverMime sql.NullString
		var year sql.NullInt64
		if err := rows.Scan(&b.ID, &b.CategoryID, &b.AuthorID, &b.Title, &b.ISBN, &publisher, &year,
			&b.Stock, &coverMime, &b.CreatedAt, &b.UpdatedAt, &b.AuthorName, &b.CategoryName,
			&b.ActiveLoans); err != nil {
			return nil, fmt.Errorf("scanning book: %w", err)
		}
		b.Publisher = publisher.String
		b.Year = int(year.Int64)
		b.CoverMime = coverMime.String
		b.Available = b.AvailableCopies()
		books = append(books, b)
	}
	return books, rows.Err()
}

// countRows counts the rows a select would return, ignoring its column list,
// ordering and pagination.
func countRows(ctx context.Context, db DBTX, ds *goqu.SelectDataset) (int, error) {
	query, args, err := ds.ClearSelect().ClearOrder().ClearLimit().ClearOffset().
		Select(goqu.COUNT(goqu.Star())).Prepared(true).ToSQL()
	if err != nil {
		return 0, fmt.Errorf("building count query: %w", err)
	}

	var n int
	if err := db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}
