package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"

	"github.com/erazemk/knjiznica/internal/model"
)

// LoanFilter narrows ListLoans. Dates are YYYY-MM-DD strings.
//
// Status "overdue" and "borrowed" are matched against the derived state:
// a loan holding a copy is overdue when its due date is before Today,
// whatever its stored status says.
type LoanFilter struct {
	MemberID   int64
	BookID     int64
	Status     string
	Today      string
	DueFrom    string
	DueTo      string
	ActiveOnly bool
	Page
}

func loanSelect() *goqu.SelectDataset {
	return dialect.From(goqu.T("loans").As("l")).
		Join(goqu.T("books").As("b"), goqu.On(goqu.I("b.id").Eq(goqu.I("l.book_id")))).
		Join(goqu.T("members").As("m"), goqu.On(goqu.I("m.id").Eq(goqu.I("l.member_id")))).
		Join(goqu.T("users").As("u"), goqu.On(goqu.I("u.id").Eq(goqu.I("m.user_id")))).
		LeftJoin(goqu.T("fines").As("f"), goqu.On(goqu.I("f.loan_id").Eq(goqu.I("l.id")))).
		Select(
			goqu.I("l.id"), goqu.I("l.book_id"), goqu.I("l.member_id"), goqu.I("l.loaned_at"),
			goqu.I("l.due_at"), goqu.I("l.returned_at"), goqu.I("l.status"), goqu.I("l.notes"),
			goqu.I("l.approved_by"), goqu.I("l.approved_at"), goqu.I("l.created_at"),
			goqu.I("b.title"), goqu.I("b.isbn"), goqu.I("b.stock"),
			goqu.I("m.code"), goqu.I("m.user_id"), goqu.I("u.username"), goqu.I("u.name"), goqu.I("u.email"),
			goqu.I("f.id"), goqu.I("f.amount"), goqu.I("f.status"), goqu.I("f.note"),
			goqu.I("f.created_at"), goqu.I("f.updated_at"),
		)
}

var holdingStatuses = []string{model.LoanBorrowed, model.LoanOverdue}

// CreateLoan inserts a loan and returns it with its relations attached.
func CreateLoan(ctx context.Context, db DBTX, l *model.Loan) (*model.Loan, error) {
	result, err := db.ExecContext(ctx,
		`INSERT INTO loans (book_id, member_id, loaned_at, due_at, returned_at, status, notes, approved_by, approved_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.BookID, l.MemberID, dateArg(l.LoanedAt), dateArg(l.DueAt), dateArg(l.ReturnedAt),
		l.Status, l.Notes, l.ApprovedBy, timeArg(l.ApprovedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("creating loan: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting loan id: %w", err)
	}

	return GetLoan(ctx, db, id)
}

// GetLoan returns a loan with its book, member and fine attached.
func GetLoan(ctx context.Context, db DBTX, id int64) (*model.Loan, error) {
	loans, err := queryLoans(ctx, db, loanSelect().Where(goqu.I("l.id").Eq(id)))
	if err != nil {
		return nil, fmt.Errorf("getting loan: %w", err)
	}
	if len(loans) == 0 {
		return nil, nil
	}
	return &loans[0], nil
}

// UpdateLoan writes back every mutable field of a loan.
func UpdateLoan(ctx context.Context, db DBTX, l *model.Loan) error {
	_, err := db.ExecContext(ctx,
		`UPDATE loans SET loaned_at = ?, due_at = ?, returned_at = ?, status = ?, notes = ?,
		        approved_by = ?, approved_at = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		dateArg(l.LoanedAt), dateArg(l.DueAt), dateArg(l.ReturnedAt), l.Status, l.Notes,
		l.ApprovedBy, timeArg(l.ApprovedAt), l.ID,
	)
	if err != nil {
		return fmt.Errorf("updating loan: %w", err)
	}
	return nil
}

// DeleteLoan removes a loan; its fine is removed by the foreign key cascade.
func DeleteLoan(ctx context.Context, db DBTX, id int64) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM loans WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting loan: %w", err)
	}
	return nil
}

// HasOpenLoan reports whether the member has a pending, approved, borrowed
// or overdue loan of the book.
func HasOpenLoan(ctx context.Context, db DBTX, memberID, bookID int64) (bool, error) {
	var n int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM loans
		 WHERE member_id = ? AND book_id = ? AND status IN ('pending', 'approved', 'borrowed', 'overdue')`,
		memberID, bookID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking open loans: %w", err)
	}
	return n > 0, nil
}

// MemberHasActiveLoans reports whether the member holds any copy.
func MemberHasActiveLoans(ctx context.Context, db DBTX, memberID int64) (bool, error) {
	var n int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM loans WHERE member_id = ? AND status IN ('borrowed', 'overdue')`, memberID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking member loans: %w", err)
	}
	return n > 0, nil
}

// MemberHasLoans reports whether any loan, in any status, references the member.
func MemberHasLoans(ctx context.Context, db DBTX, memberID int64) (bool, error) {
	var n int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM loans WHERE member_id = ?`, memberID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("counting member loans: %w", err)
	}
	return n > 0, nil
}

// ListLoans returns the loans matching f, newest first, and the total number
// of matches ignoring pagination.
func ListLoans(ctx context.Context, db DBTX, f LoanFilter) ([]model.Loan, int, error) {
	var where []goqu.Expression
	if f.MemberID != 0 {
		where = append(where, goqu.I("l.member_id").Eq(f.MemberID))
	}
	if f.BookID != 0 {
		where = append(where, goqu.I("l.book_id").Eq(f.BookID))
	}

	switch f.Status {
	case "":
	case model.LoanOverdue:
		where = append(where,
			goqu.I("l.status").In(holdingStatuses),
			goqu.I("l.returned_at").IsNull(),
			goqu.I("l.due_at").Lt(f.Today),
		)
	case model.LoanBorrowed:
		where = append(where,
			goqu.I("l.status").In(holdingStatuses),
			goqu.I("l.due_at").Gte(f.Today),
		)
	default:
		where = append(where, goqu.I("l.status").Eq(f.Status))
	}

	if f.ActiveOnly {
		where = append(where, goqu.I("l.status").In(holdingStatuses), goqu.I("l.returned_at").IsNull())
	}
	if f.DueFrom != "" {
		where = append(where, goqu.I("l.due_at").Gte(f.DueFrom))
	}
	if f.DueTo != "" {
		where = append(where, goqu.I("l.due_at").Lte(f.DueTo))
	}

	ds := loanSelect().Where(where...)

	total, err := countRows(ctx, db, ds)
	if err != nil {
		return nil, 0, fmt.Errorf("counting loans: %w", err)
	}

	order := []exp.OrderedExpression{goqu.I("l.created_at").Desc(), goqu.I("l.id").Desc()}
	if f.DueFrom != "" || f.DueTo != "" || f.Status == model.LoanOverdue {
		order = []exp.OrderedExpression{goqu.I("l.due_at").Asc(), goqu.I("l.id").Asc()}
	}

	loans, err := queryLoans(ctx, db, f.Page.apply(ds.Order(order...)))
	if err != nil {
		return nil, 0, fmt.Errorf("listing loans: %w", err)
	}
	return loans, total, nil
}

func queryLoans(ctx context.Context, db DBTX, ds *goqu.SelectDataset) ([]model.Loan, error) {
	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("building query: %w", err)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var loans []model.Loan
	for rows.Next() {
		var (
			l                           model.Loan
			b                           model.Book
			m                           model.Member
			loanedAt, dueAt, returnedAt sql.NullString
			notes                       sql.NullString
			approvedBy                  sql.NullInt64
			approvedAt                  sql.NullTime
			fineID, fineAmount          sql.NullInt64
			fineStatus, fineNote        sql.NullString
			fineCreated, fineUpdated    sql.NullTime
		)
		if err := rows.Scan(&l.ID, &l.BookID, &l.MemberID, &loanedAt, &dueAt, &returnedAt, &l.Status,
			&notes, &approvedBy, &approvedAt, &l.CreatedAt,
			&b.Title, &b.ISBN, &b.Stock,
			&m.Code, &m.UserID, &m.Username, &m.Name, &m.Email,
			&fineID, &fineAmount, &fineStatus, &fineNote, &fineCreated, &fineUpdated); err != nil {
			return nil, fmt.Errorf("scanning loan: %w", err)
		}

		l.LoanedAt = parseDate(loanedAt)
		l.DueAt = parseDate(dueAt)
		l.ReturnedAt = parseDate(returnedAt)
		l.Notes = notes.String
		if approvedBy.Valid {
			l.ApprovedBy = &approvedBy.Int64
		}
		if approvedAt.Valid {
			l.ApprovedAt = &approvedAt.Time
		}

		b.ID = l.BookID
		m.ID = l.MemberID
		l.Book = &b
		l.Member = &m

		if fineID.Valid {
			l.Fine = &model.Fine{
				ID:        fineID.Int64,
				LoanID:    l.ID,
				Amount:    fineAmount.Int64,
				Status:    fineStatus.String,
				Note:      fineNote.String,
				CreatedAt: fineCreated.Time,
				UpdatedAt: fineUpdated.Time,
				MemberID:  l.MemberID,
				BookID:    l.BookID,
				BookTitle: b.Title,
			}
		}
		loans = append(loans, l)
	}
	return loans, rows.Err()
}

// timeArg converts an optional timestamp into a driver argument.
func timeArg(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
