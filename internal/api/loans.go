package api

import (
	"net/http"
	"time"

	"github.com/erazemk/knjiznica/internal/lending"
	"github.com/erazemk/knjiznica/internal/model"
)

// LoansHandler exposes the lending engine's loan operations.
type LoansHandler struct {
	Lending *lending.Service
}

type requestLoanRequest struct {
	BookID int64  `json:"book_id"`
	Notes  string `json:"notes"`
}

type grantLoanRequest struct {
	MemberID int64  `json:"member_id"`
	BookID   int64  `json:"book_id"`
	Notes    string `json:"notes"`
}

type rejectLoanRequest struct {
	Reason string `json:"reason"`
}

type returnLoanRequest struct {
	ReturnedAt string `json:"returned_at"`
}

type extendLoanRequest struct {
	Days int `json:"days"`
}

// List handles GET /api/loans.
func (h *LoansHandler) List(w http.ResponseWriter, r *http.Request) {
	memberID, ok1 := queryInt64(r, "member_id")
	bookID, ok2 := queryInt64(r, "book_id")
	dueFrom, ok3 := queryDate(r, "due_from")
	dueTo, ok4 := queryDate(r, "due_to")
	limit, offset, ok5 := pagination(r)
	if !ok1 || !ok2 || !ok3 || !ok4 || !ok5 {
		jsonError(w, http.StatusBadRequest, "invalid query parameters")
		return
	}

	page, err := h.Lending.ListLoans(r.Context(), callerFrom(r.Context()), lending.LoanQuery{
		MemberID:   memberID,
		BookID:     bookID,
		Status:     r.URL.Query().Get("status"),
		DueFrom:    dueFrom,
		DueTo:      dueTo,
		ActiveOnly: r.URL.Query().Get("active") == "true",
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	if page.Loans == nil {
		page.Loans = []model.Loan{}
	}
	jsonResponse(w, http.StatusOK, page)
}

// Get handles GET /api/loans/{id}.
func (h *LoansHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid loan id")
		return
	}
	loan, err := h.Lending.GetLoan(r.Context(), callerFrom(r.Context()), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, loan)
}

// Request handles POST /api/loans/request: a member asks to borrow a book.
func (h *LoansHandler) Request(w http.ResponseWriter, r *http.Request) {
	var req requestLoanRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.BookID <= 0 {
		jsonError(w, http.StatusBadRequest, "book_id required")
		return
	}

	loan, err := h.Lending.RequestLoan(r.Context(), callerFrom(r.Context()), req.BookID, req.Notes)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusCreated, loan)
}

// Grant handles POST /api/loans: an admin lends a copy directly.
func (h *LoansHandler) Grant(w http.ResponseWriter, r *http.Request) {
	var req grantLoanRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	loan, err := h.Lending.GrantLoan(r.Context(), callerFrom(r.Context()), lending.GrantInput{
		MemberID: req.MemberID,
		BookID:   req.BookID,
		Notes:    req.Notes,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusCreated, loan)
}

// Approve handles POST /api/loans/{id}/approve.
func (h *LoansHandler) Approve(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid loan id")
		return
	}
	loan, err := h.Lending.ApproveLoan(r.Context(), callerFrom(r.Context()), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, loan)
}

// Reject handles POST /api/loans/{id}/reject. The body is optional.
func (h *LoansHandler) Reject(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid loan id")
		return
	}
	var req rejectLoanRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			jsonError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	loan, err := h.Lending.RejectLoan(r.Context(), callerFrom(r.Context()), id, req.Reason)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, loan)
}

// Return handles POST /api/loans/{id}/return. Admins may pass returned_at.
func (h *LoansHandler) Return(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid loan id")
		return
	}
	var req returnLoanRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			jsonError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	var returnedAt *time.Time
	if req.ReturnedAt != "" {
		t, err := time.Parse(model.DateLayout, req.ReturnedAt)
		if err != nil {
			jsonError(w, http.StatusBadRequest, "returned_at must be YYYY-MM-DD")
			return
		}
		returnedAt = &t
	}

	loan, err := h.Lending.ReturnLoan(r.Context(), callerFrom(r.Context()), id, returnedAt)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, loan)
}

// Extend handles POST /api/loans/{id}/extend.
func (h *LoansHandler) Extend(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid loan id")
		return
	}
	var req extendLoanRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	loan, err := h.Lending.ExtendLoan(r.Context(), callerFrom(r.Context()), id, req.Days)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, loan)
}

// Delete handles DELETE /api/loans/{id}.
func (h *LoansHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid loan id")
		return
	}
	if err := h.Lending.DeleteLoan(r.Context(), callerFrom(r.Context()), id); err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, message("loan deleted"))
}

// CalculateFine handles GET /api/loans/{id}/fine: a preview of what the loan
// owes as of its return date or today.
func (h *LoansHandler) CalculateFine(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid loan id")
		return
	}
	preview, err := h.Lending.CalculateFine(r.Context(), callerFrom(r.Context()), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, preview)
}
