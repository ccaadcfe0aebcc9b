package store

import (
	"context"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"

	"github.com/erazemk/knjiznica/internal/model"
)

// periodFormats maps report periods to strftime formats.
var periodFormats = map[string]string{
	model.PeriodDay:   "%Y-%m-%d",
	model.PeriodWeek:  "%Y-W%W",
	model.PeriodMonth: "%Y-%m",
	model.PeriodYear:  "%Y",
}

// ReportRange limits a report to dates in [From, To]. Empty bounds are open.
type ReportRange struct {
	From string
	To   string
}

func (r ReportRange) where(col exp.Expression) []goqu.Expression {
	var where []goqu.Expression
	if r.From != "" {
		where = append(where, goqu.L("?", col).Gte(r.From))
	}
	if r.To != "" {
		where = append(where, goqu.L("?", col).Lte(r.To))
	}
	return where
}

func periodExpr(period string, col exp.Expression) (exp.LiteralExpression, error) {
	format, ok := periodFormats[period]
	if !ok {
		return nil, fmt.Errorf("unknown report period %q", period)
	}
	return goqu.L("strftime(?, ?)", format, col), nil
}

// LoanStatistics counts loans per period, newest period first. A loan is
// placed by the day it was lent, or the day it was requested if it never was.
func LoanStatistics(ctx context.Context, db DBTX, period string, r ReportRange) ([]model.LoanPeriodStats, error) {
	day := goqu.L("COALESCE(l.loaned_at, date(l.created_at))")
	periodCol, err := periodExpr(period, day)
	if err != nil {
		return nil, err
	}

	query, args, err := dialect.From(goqu.T("loans").As("l")).
		Select(
			periodCol.As("period"),
			goqu.COUNT(goqu.Star()),
			goqu.SUM(goqu.L(`CASE WHEN l.status = 'returned' THEN 1 ELSE 0 END`)),
			goqu.SUM(goqu.L(`CASE WHEN l.status = 'rejected' THEN 1 ELSE 0 END`)),
		).
		Where(r.where(day)...).
		GroupBy(goqu.C("period")).
		Order(goqu.C("period").Desc()).
		Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("building loan statistics query: %w", err)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("loan statistics: %w", err)
	}
	defer rows.Close()

	var stats []model.LoanPeriodStats
	for rows.Next() {
		var s model.LoanPeriodStats
		if err := rows.Scan(&s.Period, &s.Loans, &s.Returned, &s.Rejected); err != nil {
			return nil, fmt.Errorf("scanning loan statistics: %w", err)
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

// MostBorrowedBooks ranks books by the number of loans that put a copy in a
// member's hands.
func MostBorrowedBooks(ctx context.Context, db DBTX, limit uint, r ReportRange) ([]model.BookLoanCount, error) {
	where := append(r.where(goqu.I("l.loaned_at")), goqu.I("l.loaned_at").IsNotNull())

	query, args, err := dialect.From(goqu.T("loans").As("l")).
		Join(goqu.T("books").As("b"), goqu.On(goqu.I("b.id").Eq(goqu.I("l.book_id")))).
		Join(goqu.T("authors").As("a"), goqu.On(goqu.I("a.id").Eq(goqu.I("b.author_id")))).
		Select(goqu.I("b.id"), goqu.I("b.title"), goqu.I("a.name"), goqu.COUNT(goqu.I("l.id")).As("loans")).
		Where(where...).
		GroupBy(goqu.I("b.id"), goqu.I("b.title"), goqu.I("a.name")).
		Order(goqu.C("loans").Desc(), goqu.I("b.title").Asc()).
		Limit(limit).
		Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("building most borrowed query: %w", err)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("most borrowed books: %w", err)
	}
	defer rows.Close()

	var out []model.BookLoanCount
	for rows.Next() {
		var c model.BookLoanCount
		if err := rows.Scan(&c.BookID, &c.Title, &c.AuthorName, &c.Loans); err != nil {
			return nil, fmt.Errorf("scanning most borrowed: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// MostActiveMembers ranks members by their number of loans.
func MostActiveMembers(ctx context.Context, db DBTX, limit uint, r ReportRange) ([]model.MemberLoanCount, error) {
	where := append(r.where(goqu.I("l.loaned_at")), goqu.I("l.loaned_at").IsNotNull())

	query, args, err := dialect.From(goqu.T("loans").As("l")).
		Join(goqu.T("members").As("m"), goqu.On(goqu.I("m.id").Eq(goqu.I("l.member_id")))).
		Join(goqu.T("users").As("u"), goqu.On(goqu.I("u.id").Eq(goqu.I("m.user_id")))).
		Select(goqu.I("m.id"), goqu.I("m.code"), goqu.I("u.name"), goqu.COUNT(goqu.I("l.id")).As("loans")).
		Where(where...).
		GroupBy(goqu.I("m.id"), goqu.I("m.code"), goqu.I("u.name")).
		Order(goqu.C("loans").Desc(), goqu.I("m.code").Asc()).
		Limit(limit).
		Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("building most active query: %w", err)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("most active members: %w", err)
	}
	defer rows.Close()

	var out []model.MemberLoanCount
	for rows.Next() {
		var c model.MemberLoanCount
		if err := rows.Scan(&c.MemberID, &c.Code, &c.Name, &c.Loans); err != nil {
			return nil, fmt.Errorf("scanning most active: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// FineReport totals fines per period of issue, newest period first.
func FineReport(ctx context.Context, db DBTX, period string, r ReportRange) ([]model.FinePeriodStats, error) {
	day := goqu.L("date(f.created_at)")
	periodCol, err := periodExpr(period, day)
	if err != nil {
		return nil, err
	}

	query, args, err := dialect.From(goqu.T("fines").As("f")).
		Select(
			periodCol.As("period"),
			goqu.COUNT(goqu.Star()),
			goqu.SUM(goqu.I("f.amount")),
			goqu.SUM(goqu.L(`CASE WHEN f.status = 'paid' THEN f.amount ELSE 0 END`)),
			goqu.SUM(goqu.L(`CASE WHEN f.status = 'unpaid' THEN f.amount ELSE 0 END`)),
		).
		Where(r.where(day)...).
		GroupBy(goqu.C("period")).
		Order(goqu.C("period").Desc()).
		Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("building fine report query: %w", err)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("fine report: %w", err)
	}
	defer rows.Close()

	var out []model.FinePeriodStats
	for rows.Next() {
		var s model.FinePeriodStats
		if err := rows.Scan(&s.Period, &s.Count, &s.TotalAmount, &s.PaidAmount, &s.UnpaidAmount); err != nil {
			return nil, fmt.Errorf("scanning fine report: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
