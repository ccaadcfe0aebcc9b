package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/erazemk/knjiznica/internal/model"
)

const memberSelect = `SELECT m.id, m.user_id, m.code, m.phone, m.address, m.join_date, m.created_at,
        u.username, u.name, u.email
 FROM members m
 JOIN users u ON u.id = m.user_id`

// NewMemberCode generates a membership code such as "MBR-1A2B3C4D".
func NewMemberCode() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "MBR-" + strings.ToUpper(id[:8])
}

// CreateMember creates the member profile for a user. An empty code is
// replaced with a generated one.
func CreateMember(ctx context.Context, db DBTX, userID int64, code, phone, address, joinDate string) (*model.Member, error) {
	if code == "" {
		code = NewMemberCode()
	}

	result, err := db.ExecContext(ctx,
		`INSERT INTO members (user_id, code, phone, address, join_date) VALUES (?, ?, ?, ?, ?)`,
		userID, code, phone, address, joinDate,
	)
	if err != nil {
		return nil, fmt.Errorf("creating member: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting member id: %w", err)
	}

	return GetMember(ctx, db, id)
}

// GetMember returns a member by ID.
func GetMember(ctx context.Context, db DBTX, id int64) (*model.Member, error) {
	return getMemberWhere(ctx, db, `m.id = ?`, id)
}

// GetMemberByUser returns the member profile linked to a user.
func GetMemberByUser(ctx context.Context, db DBTX, userID int64) (*model.Member, error) {
	return getMemberWhere(ctx, db, `m.user_id = ?`, userID)
}

func getMemberWhere(ctx context.Context, db DBTX, where string, arg any) (*model.Member, error) {
	rows, err := db.QueryContext(ctx, memberSelect+` WHERE `+where, arg)
	if err != nil {
		return nil, fmt.Errorf("getting member: %w", err)
	}
	defer rows.Close()

	members, err := scanMembers(rows)
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return nil, nil
	}
	return &members[0], nil
}

// ListMembers returns all members, optionally filtered by a search term
// matched against code, username and name.
func ListMembers(ctx context.Context, db DBTX, search string) ([]model.Member, error) {
	query := memberSelect + ` WHERE u.deleted_at IS NULL`
	var args []any
	if search != "" {
		like := "%" + search + "%"
		query += ` AND (m.code LIKE ? OR u.username LIKE ? OR u.name LIKE ?)`
		args = append(args, like, like, like)
	}
	query += ` ORDER BY m.id`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing members: %w", err)
	}
	defer rows.Close()

	return scanMembers(rows)
}

// UpdateMember updates a member's contact details.
func UpdateMember(ctx context.Context, db DBTX, id int64, phone, address string) error {
	_, err := db.ExecContext(ctx,
		`UPDATE members SET phone = ?, address = ? WHERE id = ?`,
		phone, address, id,
	)
	if err != nil {
		return fmt.Errorf("updating member: %w", err)
	}
	return nil
}

// DeleteMember removes a member profile. Callers must check loan history first;
// the loans foreign key rejects deletion while any loan references the member.
func DeleteMember(ctx context.Context, db DBTX, id int64) error {
	_, err := db.ExecContext(ctx, `DELETE FROM members WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting member: %w", err)
	}
	return nil
}

// GetNotificationPrefs returns a member's reminder preferences.
func GetNotificationPrefs(ctx context.Context, db DBTX, memberID int64) (*model.NotificationPrefs, error) {
	p := &model.NotificationPrefs{}
	err := db.QueryRowContext(ctx,
		`SELECT email_due_reminder, email_overdue_reminder FROM members WHERE id = ?`, memberID,
	).Scan(&p.EmailDueReminder, &p.EmailOverdueReminder)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting notification preferences: %w", err)
	}
	return p, nil
}

// SetNotificationPrefs stores a member's reminder preferences.
func SetNotificationPrefs(ctx context.Context, db DBTX, memberID int64, p model.NotificationPrefs) error {
	_, err := db.ExecContext(ctx,
		`UPDATE members SET email_due_reminder = ?, email_overdue_reminder = ? WHERE id = ?`,
		p.EmailDueReminder, p.EmailOverdueReminder, memberID,
	)
	if err != nil {
		return fmt.Errorf("setting notification preferences: %w", err)
	}
	return nil
}

// GetMemberStats returns loan and fine counters for a member. today is the
// current calendar date; a loan is overdue when unreturned and due before it.
func GetMemberStats(ctx context.Context, db DBTX, memberID int64, today string) (*model.MemberStats, error) {
	s := &model.MemberStats{}
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*),
		        COALESCE(SUM(CASE WHEN status IN ('borrowed', 'overdue') THEN 1 ELSE 0 END), 0),
		        COALESCE(SUM(CASE WHEN status = 'returned' THEN 1 ELSE 0 END), 0),
		        COALESCE(SUM(CASE WHEN status IN ('borrowed', 'overdue') AND returned_at IS NULL AND due_at < ? THEN 1 ELSE 0 END), 0)
		 FROM loans WHERE member_id = ?`, today, memberID,
	).Scan(&s.TotalLoans, &s.ActiveLoans, &s.ReturnedLoans, &s.OverdueLoans)
	if err != nil {
		return nil, fmt.Errorf("getting member loan stats: %w", err)
	}

	err = db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(f.amount), 0)
		 FROM fines f JOIN loans l ON l.id = f.loan_id
		 WHERE l.member_id = ? AND f.status = 'unpaid'`, memberID,
	).Scan(&s.UnpaidFines)
	if err != nil {
		return nil, fmt.Errorf("getting member fine stats: %w", err)
	}
	return s, nil
}

func scanMembers(rows *sql.Rows) ([]model.Member, error) {
	var members []model.Member
	for rows.Next() {
		var m model.Member
		var phone, address sql.NullString
		if err := rows.Scan(&m.ID, &m.UserID, &m.Code, &phone, &address, &m.JoinDate, &m.CreatedAt,
			&m.Username, &m.Name, &m.Email); err != nil {
			return nil, fmt.Errorf("scanning member: %w", err)
		}
		m.Phone = phone.String
		m.Address = address.String
		members = append(members, m)
	}
	return members, rows.Err()
}
