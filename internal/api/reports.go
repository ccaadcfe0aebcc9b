package api

import (
	"database/sql"
	"net/http"

	"github.com/erazemk/knjiznica/internal/model"
	"github.com/erazemk/knjiznica/internal/store"
)

// ReportsHandler serves admin reports.
type ReportsHandler struct {
	DB *sql.DB
}

type inventoryResponse struct {
	Books           []model.Book `json:"books"`
	TotalTitles     int          `json:"total_titles"`
	TotalCopies     int          `json:"total_copies"`
	CopiesOnLoan    int          `json:"copies_on_loan"`
	CopiesAvailable int          `json:"copies_available"`
}

// reportRange reads the optional from/to dates.
func reportRange(r *http.Request) (store.ReportRange, bool) {
	q := r.URL.Query()
	rr := store.ReportRange{From: q.Get("from"), To: q.Get("to")}
	if rr.From != "" && !validDate(rr.From) || rr.To != "" && !validDate(rr.To) {
		return rr, false
	}
	return rr, true
}

func period(r *http.Request) (string, bool) {
	p := r.URL.Query().Get("period")
	if p == "" {
		return model.PeriodMonth, true
	}
	return p, model.ValidPeriod(p)
}

// LoanStatistics handles GET /api/reports/loans.
func (h *ReportsHandler) LoanStatistics(w http.ResponseWriter, r *http.Request) {
	p, ok1 := period(r)
	rr, ok2 := reportRange(r)
	if !ok1 || !ok2 {
		jsonError(w, http.StatusBadRequest, "invalid period or date range")
		return
	}
	stats, err := store.LoanStatistics(r.Context(), h.DB, p, rr)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if stats == nil {
		stats = []model.LoanPeriodStats{}
	}
	jsonResponse(w, http.StatusOK, stats)
}

// MostBorrowed handles GET /api/reports/most-borrowed.
func (h *ReportsHandler) MostBorrowed(w http.ResponseWriter, r *http.Request) {
	limit, ok1 := queryUint(r, "limit", 10)
	rr, ok2 := reportRange(r)
	if !ok1 || !ok2 || limit == 0 {
		jsonError(w, http.StatusBadRequest, "invalid limit or date range")
		return
	}
	books, err := store.MostBorrowedBooks(r.Context(), h.DB, min(limit, maxPageSize), rr)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if books == nil {
		books = []model.BookLoanCount{}
	}
	jsonResponse(w, http.StatusOK, books)
}

// MostActive handles GET /api/reports/most-active.
func (h *ReportsHandler) MostActive(w http.ResponseWriter, r *http.Request) {
	limit, ok1 := queryUint(r, "limit", 10)
	rr, ok2 := reportRange(r)
	if !ok1 || !ok2 || limit == 0 {
		jsonError(w, http.StatusBadRequest, "invalid limit or date range")
		return
	}
	members, err := store.MostActiveMembers(r.Context(), h.DB, min(limit, maxPageSize), rr)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if members == nil {
		members = []model.MemberLoanCount{}
	}
	jsonResponse(w, http.StatusOK, members)
}

// Fines handles GET /api/reports/fines.
func (h *ReportsHandler) Fines(w http.ResponseWriter, r *http.Request) {
	p, ok1 := period(r)
	rr, ok2 := reportRange(r)
	if !ok1 || !ok2 {
		jsonError(w, http.StatusBadRequest, "invalid period or date range")
		return
	}
	stats, err := store.FineReport(r.Context(), h.DB, p, rr)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if stats == nil {
		stats = []model.FinePeriodStats{}
	}
	jsonResponse(w, http.StatusOK, stats)
}

// Inventory handles GET /api/reports/inventory.
func (h *ReportsHandler) Inventory(w http.ResponseWriter, r *http.Request) {
	categoryID, ok := queryInt64(r, "category_id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid category_id")
		return
	}
	books, total, err := store.ListBooks(r.Context(), h.DB, store.BookFilter{CategoryID: categoryID})
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := inventoryResponse{Books: books, TotalTitles: total}
	if resp.Books == nil {
		resp.Books = []model.Book{}
	}
	for _, b := range books {
		resp.TotalCopies += b.Stock
		resp.CopiesOnLoan += b.ActiveLoans
		resp.CopiesAvailable += b.AvailableCopies()
	}
	jsonResponse(w, http.StatusOK, resp)
}
