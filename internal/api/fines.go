package api

import (
	"net/http"

	"github.com/erazemk/knjiznica/internal/lending"
)

// FinesHandler exposes fine operations.
type FinesHandler struct {
	Lending *lending.Service
}

type createFineRequest struct {
	LoanID int64  `json:"loan_id"`
	Amount *int64 `json:"amount"`
	Note   string `json:"note"`
}

type updateFineRequest struct {
	Amount *int64  `json:"amount"`
	Status *string `json:"status"`
	Note   *string `json:"note"`
}

// List handles GET /api/fines.
func (h *FinesHandler) List(w http.ResponseWriter, r *http.Request) {
	memberID, ok1 := queryInt64(r, "member_id")
	loanID, ok2 := queryInt64(r, "loan_id")
	limit, offset, ok3 := pagination(r)
	if !ok1 || !ok2 || !ok3 {
		jsonError(w, http.StatusBadRequest, "invalid query parameters")
		return
	}

	page, err := h.Lending.ListFines(r.Context(), callerFrom(r.Context()), lending.FineQuery{
		MemberID: memberID,
		LoanID:   loanID,
		Status:   r.URL.Query().Get("status"),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, page)
}

// Unpaid handles GET /api/fines/unpaid.
func (h *FinesHandler) Unpaid(w http.ResponseWriter, r *http.Request) {
	page, err := h.Lending.UnpaidFines(r.Context(), callerFrom(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, page)
}

// Get handles GET /api/fines/{id}.
func (h *FinesHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid fine id")
		return
	}
	fine, err := h.Lending.GetFine(r.Context(), callerFrom(r.Context()), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, fine)
}

// Create handles POST /api/fines.
func (h *FinesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createFineRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.LoanID <= 0 {
		jsonError(w, http.StatusBadRequest, "loan_id required")
		return
	}

	fine, err := h.Lending.CreateFine(r.Context(), callerFrom(r.Context()), lending.CreateFineInput{
		LoanID: req.LoanID,
		Amount: req.Amount,
		Note:   req.Note,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusCreated, fine)
}

// Update handles PUT /api/fines/{id}.
func (h *FinesHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid fine id")
		return
	}
	var req updateFineRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	fine, err := h.Lending.UpdateFine(r.Context(), callerFrom(r.Context()), id, lending.FineUpdate{
		Amount: req.Amount,
		Status: req.Status,
		Note:   req.Note,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, fine)
}

// Pay handles POST /api/fines/{id}/pay.
func (h *FinesHandler) Pay(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid fine id")
		return
	}
	fine, err := h.Lending.PayFine(r.Context(), callerFrom(r.Context()), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, fine)
}

// Delete handles DELETE /api/fines/{id}.
func (h *FinesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid fine id")
		return
	}
	if err := h.Lending.DeleteFine(r.Context(), callerFrom(r.Context()), id); err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, message("fine deleted"))
}
