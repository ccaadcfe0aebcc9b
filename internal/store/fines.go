package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/doug-martin/goqu/v9"

	"github.com/erazemk/knjiznica/internal/model"
)

// FineFilter narrows ListFines.
type FineFilter struct {
	MemberID int64
	LoanID   int64
	Status   string
	Page
}

func fineSelect() *goqu.SelectDataset {
	return dialect.From(goqu.T("fines").As("f")).
		Join(goqu.T("loans").As("l"), goqu.On(goqu.I("l.id").Eq(goqu.I("f.loan_id")))).
		Join(goqu.T("books").As("b"), goqu.On(goqu.I("b.id").Eq(goqu.I("l.book_id")))).
		Select(
			goqu.I("f.id"), goqu.I("f.loan_id"), goqu.I("f.amount"), goqu.I("f.status"), goqu.I("f.note"),
			goqu.I("f.created_at"), goqu.I("f.updated_at"),
			goqu.I("l.member_id"), goqu.I("l.book_id"), goqu.I("b.title"),
		)
}

func (f FineFilter) where() []goqu.Expression {
	var where []goqu.Expression
	if f.MemberID != 0 {
		where = append(where, goqu.I("l.member_id").Eq(f.MemberID))
	}
	if f.LoanID != 0 {
		where = append(where, goqu.I("f.loan_id").Eq(f.LoanID))
	}
	if f.Status != "" {
		where = append(where, goqu.I("f.status").Eq(f.Status))
	}
	return where
}

// CreateFine inserts a fine. A second fine for the same loan violates the
// unique loan_id constraint.
func CreateFine(ctx context.Context, db DBTX, loanID, amount int64, status, note string) (*model.Fine, error) {
	result, err := db.ExecContext(ctx,
		`INSERT INTO fines (loan_id, amount, status, note) VALUES (?, ?, ?, ?)`,
		loanID, amount, status, note,
	)
	if err != nil {
		return nil, fmt.Errorf("creating fine: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting fine id: %w", err)
	}

	return GetFine(ctx, db, id)
}

// UpsertFineForLoan creates the loan's fine, or resets an existing one to
// unpaid with the new amount and note.
func UpsertFineForLoan(ctx context.Context, db DBTX, loanID, amount int64, note string) (*model.Fine, error) {
	_, err := db.ExecContext(ctx,
		`INSERT INTO fines (loan_id, amount, status, note) VALUES (?, ?, 'unpaid', ?)
		 ON CONFLICT(loan_id) DO UPDATE SET
		     amount = excluded.amount,
		     status = 'unpaid',
		     note = excluded.note,
		     updated_at = CURRENT_TIMESTAMP`,
		loanID, amount, note,
	)
	if err != nil {
		return nil, fmt.Errorf("upserting fine: %w", err)
	}
	return GetFineByLoan(ctx, db, loanID)
}

// GetFine returns a fine by ID.
func GetFine(ctx context.Context, db DBTX, id int64) (*model.Fine, error) {
	fines, err := queryFines(ctx, db, fineSelect().Where(goqu.I("f.id").Eq(id)))
	if err != nil {
		return nil, fmt.Errorf("getting fine: %w", err)
	}
	if len(fines) == 0 {
		return nil, nil
	}
	return &fines[0], nil
}

// GetFineByLoan returns the fine attached to a loan.
func GetFineByLoan(ctx context.Context, db DBTX, loanID int64) (*model.Fine, error) {
	fines, err := queryFines(ctx, db, fineSelect().Where(goqu.I("f.loan_id").Eq(loanID)))
	if err != nil {
		return nil, fmt.Errorf("getting fine by loan: %w", err)
	}
	if len(fines) == 0 {
		return nil, nil
	}
	return &fines[0], nil
}

// UpdateFine writes a fine's amount, status and note.
func UpdateFine(ctx context.Context, db DBTX, f *model.Fine) error {
	_, err := db.ExecContext(ctx,
		`UPDATE fines SET amount = ?, status = ?, note = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		f.Amount, f.Status, f.Note, f.ID,
	)
	if err != nil {
		return fmt.Errorf("updating fine: %w", err)
	}
	return nil
}

// DeleteFine removes a fine.
func DeleteFine(ctx context.Context, db DBTX, id int64) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM fines WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting fine: %w", err)
	}
	return nil
}

// ListFines returns the fines matching f, newest first, and the total number
// of matches ignoring pagination.
func ListFines(ctx context.Context, db DBTX, f FineFilter) ([]model.Fine, int, error) {
	ds := fineSelect().Where(f.where()...)

	total, err := countRows(ctx, db, ds)
	if err != nil {
		return nil, 0, fmt.Errorf("counting fines: %w", err)
	}

	fines, err := queryFines(ctx, db, f.Page.apply(ds.Order(goqu.I("f.created_at").Desc(), goqu.I("f.id").Desc())))
	if err != nil {
		return nil, 0, fmt.Errorf("listing fines: %w", err)
	}
	return fines, total, nil
}

// SummarizeFines totals the fines matching f, ignoring pagination.
func SummarizeFines(ctx context.Context, db DBTX, f FineFilter) (*model.FineSummary, error) {
	query, args, err := dialect.From(goqu.T("fines").As("f")).
		Join(goqu.T("loans").As("l"), goqu.On(goqu.I("l.id").Eq(goqu.I("f.loan_id")))).
		Select(
			goqu.COALESCE(goqu.SUM(goqu.I("f.amount")), 0),
			goqu.COALESCE(goqu.SUM(goqu.L(`CASE WHEN f.status = 'paid' THEN f.amount ELSE 0 END`)), 0),
			goqu.COALESCE(goqu.SUM(goqu.L(`CASE WHEN f.status = 'unpaid' THEN f.amount ELSE 0 END`)), 0),
			goqu.COALESCE(goqu.SUM(goqu.L(`CASE WHEN f.status = 'paid' THEN 1 ELSE 0 END`)), 0),
			goqu.COALESCE(goqu.SUM(goqu.L(`CASE WHEN f.status = 'unpaid' THEN 1 ELSE 0 END`)), 0),
		).
		Where(f.where()...).
		Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("building fine summary query: %w", err)
	}

	s := &model.FineSummary{}
	err = db.QueryRowContext(ctx, query, args...).
		Scan(&s.TotalAmount, &s.PaidAmount, &s.UnpaidAmount, &s.CountPaid, &s.CountUnpaid)
	if err != nil {
		return nil, fmt.Errorf("summarizing fines: %w", err)
	}
	return s, nil
}

func queryFines(ctx context.Context, db DBTX, ds *goqu.SelectDataset) ([]model.Fine, error) {
	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("building query: %w", err)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fines []model.Fine
	for rows.Next() {
		var f model.Fine
		var note sql.NullString
		if err := rows.Scan(&f.ID, &f.LoanID, &f.Amount, &f.Status, &note, &f.CreatedAt, &f.UpdatedAt,
			&f.MemberID, &f.BookID, &f.BookTitle); err != nil {
			return nil, fmt.Errorf("scanning fine: %w", err)
		}
		f.Note = note.String
		fines = append(fines, f)
	}
	return fines, rows.Err()
}
