package model

// Report periods.
const (
	PeriodDay   = "day"
	PeriodWeek  = "week"
	PeriodMonth = "month"
	PeriodYear  = "year"
)

// ValidPeriod reports whether p is a known report period.
func ValidPeriod(p string) bool {
	switch p {
	case PeriodDay, PeriodWeek, PeriodMonth, PeriodYear:
		return true
	}
	return false
}

// LoanPeriodStats counts loans started within one period.
type LoanPeriodStats struct {
	Period   string `json:"period"`
	Loans    int    `json:"loans"`
	Returned int    `json:"returned"`
	Rejected int    `json:"rejected"`
}

// BookLoanCount ranks a book by how often it was borrowed.
type BookLoanCount struct {
	BookID     int64  `json:"book_id"`
	Title      string `json:"title"`
	AuthorName string `json:"author_name"`
	Loans      int    `json:"loans"`
}

// MemberLoanCount ranks a member by how many loans they had.
type MemberLoanCount struct {
	MemberID int64  `json:"member_id"`
	Code     string `json:"code"`
	Name     string `json:"name"`
	Loans    int    `json:"loans"`
}

// FinePeriodStats totals fines issued within one period.
type FinePeriodStats struct {
	Period       string `json:"period"`
	Count        int    `json:"count"`
	TotalAmount  int64  `json:"total_amount"`
	PaidAmount   int64  `json:"paid_amount"`
	UnpaidAmount int64  `json:"unpaid_amount"`
}
