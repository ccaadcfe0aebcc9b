package api

import (
	"net/http"
	"strconv"

	"github.com/erazemk/knjiznica/internal/lending"
)

// NotificationsHandler serves due-date reminders.
type NotificationsHandler struct {
	Lending *lending.Service
}

// days reads the optional lookahead; zero selects the configured default.
func days(r *http.Request) (int, bool) {
	v := r.URL.Query().Get("days")
	if v == "" {
		return 0, true
	}
	n, err := strconv.Atoi(v)
	return n, err == nil
}

// NearDue handles GET /api/notifications/near-due.
func (h *NotificationsHandler) NearDue(w http.ResponseWriter, r *http.Request) {
	d, ok := days(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid days")
		return
	}
	loans, err := h.Lending.NearDue(r.Context(), callerFrom(r.Context()), d)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if loans == nil {
		loans = []lending.DueLoan{}
	}
	jsonResponse(w, http.StatusOK, loans)
}

// Overdue handles GET /api/notifications/overdue.
func (h *NotificationsHandler) Overdue(w http.ResponseWriter, r *http.Request) {
	loans, err := h.Lending.Overdue(r.Context(), callerFrom(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if loans == nil {
		loans = []lending.DueLoan{}
	}
	jsonResponse(w, http.StatusOK, loans)
}

// Summary handles GET /api/notifications/summary.
func (h *NotificationsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	d, ok := days(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid days")
		return
	}
	sum, err := h.Lending.NotificationSummary(r.Context(), callerFrom(r.Context()), d)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, sum)
}

// NearDueByMember handles GET /api/notifications/near-due/members.
func (h *NotificationsHandler) NearDueByMember(w http.ResponseWriter, r *http.Request) {
	d, ok := days(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid days")
		return
	}
	groups, err := h.Lending.NearDueByMember(r.Context(), callerFrom(r.Context()), d)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, groups)
}

// OverdueByMember handles GET /api/notifications/overdue/members.
func (h *NotificationsHandler) OverdueByMember(w http.ResponseWriter, r *http.Request) {
	groups, err := h.Lending.OverdueByMember(r.Context(), callerFrom(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, groups)
}
