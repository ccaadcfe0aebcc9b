package model

import "time"

// Member is the patron profile linked 1:1 to a User.
type Member struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Code      string    `json:"code"`
	Phone     string    `json:"phone,omitempty"`
	Address   string    `json:"address,omitempty"`
	JoinDate  string    `json:"join_date"`
	CreatedAt time.Time `json:"created_at"`

	// Joined fields (not always populated).
	Username string `json:"username,omitempty"`
	Name     string `json:"name,omitempty"`
	Email    string `json:"email,omitempty"`
}

// NotificationPrefs are a member's reminder preferences.
type NotificationPrefs struct {
	EmailDueReminder     bool `json:"email_due_reminder"`
	EmailOverdueReminder bool `json:"email_overdue_reminder"`
}

// MemberStats summarises a member's borrowing history.
type MemberStats struct {
	TotalLoans    int   `json:"total_loans"`
	ActiveLoans   int   `json:"active_loans"`
	ReturnedLoans int   `json:"returned_loans"`
	OverdueLoans  int   `json:"overdue_loans"`
	UnpaidFines   int64 `json:"unpaid_fines"`
}
