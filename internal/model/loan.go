package model

import "time"

// Loan statuses.
const (
	LoanPending  = "pending"
	LoanApproved = "approved"
	LoanBorrowed = "borrowed"
	LoanOverdue  = "overdue"
	LoanReturned = "returned"
	LoanRejected = "rejected"
)

// ActiveLoanStatuses are the statuses that hold a physical copy.
var ActiveLoanStatuses = []string{LoanBorrowed, LoanOverdue}

// OpenLoanStatuses are the statuses in which a member may hold at most one
// loan per book.
var OpenLoanStatuses = []string{LoanPending, LoanApproved, LoanBorrowed, LoanOverdue}

// ValidLoanStatus reports whether s is a known loan status.
func ValidLoanStatus(s string) bool {
	switch s {
	case LoanPending, LoanApproved, LoanBorrowed, LoanOverdue, LoanReturned, LoanRejected:
		return true
	}
	return false
}

// DateLayout is the storage and wire format of loan dates.
const DateLayout = "2006-01-02"

// Loan is a member borrowing (or requesting) one copy of a book.
// LoanedAt, DueAt and ReturnedAt are calendar dates at midnight UTC.
type Loan struct {
	ID         int64      `json:"id"`
	BookID     int64      `json:"book_id"`
	MemberID   int64      `json:"member_id"`
	LoanedAt   *time.Time `json:"loaned_at"`
	DueAt      *time.Time `json:"due_at"`
	ReturnedAt *time.Time `json:"returned_at"`
	Status     string     `json:"status"`
	Notes      string     `json:"notes,omitempty"`
	ApprovedBy *int64     `json:"approved_by,omitempty"`
	ApprovedAt *time.Time `json:"approved_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`

	// Attached relations (not always populated).
	Book   *Book   `json:"book,omitempty"`
	Member *Member `json:"member,omitempty"`
	Fine   *Fine   `json:"fine,omitempty"`
}

// Fine statuses.
const (
	FineUnpaid = "unpaid"
	FinePaid   = "paid"
)

// Fine is the monetary penalty attached to a single loan. Amount is in the
// smallest currency unit.
type Fine struct {
	ID        int64     `json:"id"`
	LoanID    int64     `json:"loan_id"`
	Amount    int64     `json:"amount"`
	Status    string    `json:"status"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Joined fields (not always populated).
	MemberID  int64  `json:"member_id,omitempty"`
	BookID    int64  `json:"book_id,omitempty"`
	BookTitle string `json:"book_title,omitempty"`
}

// FineSummary totals a set of fines.
type FineSummary struct {
	TotalAmount  int64 `json:"total_amount"`
	PaidAmount   int64 `json:"paid_amount"`
	UnpaidAmount int64 `json:"unpaid_amount"`
	CountPaid    int   `json:"count_paid"`
	CountUnpaid  int   `json:"count_unpaid"`
}
