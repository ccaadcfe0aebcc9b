package api

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/erazemk/knjiznica/internal/auth"
	"github.com/erazemk/knjiznica/internal/lending"
	"github.com/erazemk/knjiznica/internal/model"
	"github.com/erazemk/knjiznica/internal/store"
)

var (
	errMemberHasLoans = fmt.Errorf("%w: member has active loans", lending.ErrConflict)
	errMemberHasFines = fmt.Errorf("%w: member has unpaid fines", lending.ErrConflict)
)

// MembersHandler handles member profile endpoints.
type MembersHandler struct {
	DB      *sql.DB
	Lending *lending.Service
}

type createMemberRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Code     string `json:"code"`
	Phone    string `json:"phone"`
	Address  string `json:"address"`
	JoinDate string `json:"join_date"`
}

type updateMemberRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

// List handles GET /api/members.
func (h *MembersHandler) List(w http.ResponseWriter, r *http.Request) {
	members, err := store.ListMembers(r.Context(), h.DB, strings.TrimSpace(r.URL.Query().Get("search")))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if members == nil {
		members = []model.Member{}
	}
	jsonResponse(w, http.StatusOK, members)
}

// Create handles POST /api/members. It creates the login account and the
// member profile in one transaction.
func (h *MembersHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createMemberRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" || strings.TrimSpace(req.Name) == "" {
		jsonError(w, http.StatusBadRequest, "username, password and name required")
		return
	}
	if err := model.ValidatePassword(req.Password); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.JoinDate == "" {
		req.JoinDate = store.FormatDate(h.Lending.Today())
	} else if !validDate(req.JoinDate) {
		jsonError(w, http.StatusBadRequest, "join_date must be YYYY-MM-DD")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var member *model.Member
	err = store.WithTx(r.Context(), h.DB, func(tx *sql.Tx) error {
		user, err := store.CreateUser(r.Context(), tx, req.Username, req.Name, req.Email, hash, model.RoleMember)
		if err != nil {
			return err
		}
		member, err = store.CreateMember(r.Context(), tx, user.ID, req.Code, req.Phone, req.Address, req.JoinDate)
		return err
	})
	if store.IsUniqueViolation(err) {
		jsonError(w, http.StatusConflict, "username or member code already exists")
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}

	c := callerFrom(r.Context())
	slog.Info("member created", "user", c.Username, "member", member.Code)
	jsonResponse(w, http.StatusCreated, member)
}

// Get handles GET /api/members/{id}.
func (h *MembersHandler) Get(w http.ResponseWriter, r *http.Request) {
	member, ok := h.load(w, r)
	if !ok {
		return
	}
	jsonResponse(w, http.StatusOK, member)
}

// Update handles PUT /api/members/{id}.
func (h *MembersHandler) Update(w http.ResponseWriter, r *http.Request) {
	member, ok := h.load(w, r)
	if !ok {
		return
	}
	h.update(w, r, member)
}

// Delete handles DELETE /api/members/{id}. Members with active loans or
// unpaid fines cannot be deleted. A member with loan history keeps the
// profile and only loses the login account.
func (h *MembersHandler) Delete(w http.ResponseWriter, r *http.Request) {
	member, ok := h.load(w, r)
	if !ok {
		return
	}

	err := store.WithTx(r.Context(), h.DB, func(tx *sql.Tx) error {
		return deleteMemberAccount(r.Context(), tx, member)
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	c := callerFrom(r.Context())
	slog.Info("member deleted", "user", c.Username, "member", member.Code)
	jsonResponse(w, http.StatusOK, message("member deleted"))
}

// deleteMemberAccount removes the login of member inside tx. Active loans
// and unpaid fines block it. A member with loan history keeps the profile.
func deleteMemberAccount(ctx context.Context, tx *sql.Tx, member *model.Member) error {
	active, err := store.MemberHasActiveLoans(ctx, tx, member.ID)
	if err != nil {
		return err
	}
	if active {
		return errMemberHasLoans
	}
	fines, err := store.SummarizeFines(ctx, tx, store.FineFilter{MemberID: member.ID, Status: model.FineUnpaid})
	if err != nil {
		return err
	}
	if fines.CountUnpaid > 0 {
		return errMemberHasFines
	}

	history, err := store.MemberHasLoans(ctx, tx, member.ID)
	if err != nil {
		return err
	}
	if !history {
		if err := store.DeleteMember(ctx, tx, member.ID); err != nil {
			return err
		}
	}
	return store.DeleteUser(ctx, tx, member.UserID)
}

// Stats handles GET /api/members/{id}/stats.
func (h *MembersHandler) Stats(w http.ResponseWriter, r *http.Request) {
	member, ok := h.load(w, r)
	if !ok {
		return
	}
	h.stats(w, r, member.ID)
}

// Me handles GET /api/members/me.
func (h *MembersHandler) Me(w http.ResponseWriter, r *http.Request) {
	member, ok := h.own(w, r)
	if !ok {
		return
	}
	jsonResponse(w, http.StatusOK, member)
}

// UpdateMe handles PUT /api/members/me.
func (h *MembersHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	member, ok := h.own(w, r)
	if !ok {
		return
	}
	h.update(w, r, member)
}

// MyStats handles GET /api/members/me/stats.
func (h *MembersHandler) MyStats(w http.ResponseWriter, r *http.Request) {
	member, ok := h.own(w, r)
	if !ok {
		return
	}
	h.stats(w, r, member.ID)
}

// Preferences handles GET /api/members/me/preferences.
func (h *MembersHandler) Preferences(w http.ResponseWriter, r *http.Request) {
	member, ok := h.own(w, r)
	if !ok {
		return
	}
	prefs, err := store.GetNotificationPrefs(r.Context(), h.DB, member.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, prefs)
}

// UpdatePreferences handles PUT /api/members/me/preferences.
func (h *MembersHandler) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	member, ok := h.own(w, r)
	if !ok {
		return
	}

	var prefs model.NotificationPrefs
	if err := decodeJSON(w, r, &prefs); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := store.SetNotificationPrefs(r.Context(), h.DB, member.ID, prefs); err != nil {
		writeError(w, r, err)
		return
	}

	slog.Info("notification preferences updated", "member", member.Code,
		"due", prefs.EmailDueReminder, "overdue", prefs.EmailOverdueReminder)
	jsonResponse(w, http.StatusOK, prefs)
}

func (h *MembersHandler) load(w http.ResponseWriter, r *http.Request) (*model.Member, bool) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid member id")
		return nil, false
	}
	member, err := store.GetMember(r.Context(), h.DB, id)
	if err != nil {
		writeError(w, r, err)
		return nil, false
	}
	if member == nil {
		writeError(w, r, lending.ErrMemberNotFound)
		return nil, false
	}
	return member, true
}

func (h *MembersHandler) own(w http.ResponseWriter, r *http.Request) (*model.Member, bool) {
	c := callerFrom(r.Context())
	if c.MemberID == 0 {
		writeError(w, r, lending.ErrNoMemberProfile)
		return nil, false
	}
	member, err := store.GetMember(r.Context(), h.DB, c.MemberID)
	if err != nil {
		writeError(w, r, err)
		return nil, false
	}
	if member == nil {
		writeError(w, r, lending.ErrNoMemberProfile)
		return nil, false
	}
	return member, true
}

func (h *MembersHandler) update(w http.ResponseWriter, r *http.Request, member *model.Member) {
	var req updateMemberRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		jsonError(w, http.StatusBadRequest, "name required")
		return
	}

	err := store.WithTx(r.Context(), h.DB, func(tx *sql.Tx) error {
		if err := store.UpdateUserProfile(r.Context(), tx, member.UserID, req.Name, req.Email); err != nil {
			return err
		}
		return store.UpdateMember(r.Context(), tx, member.ID, req.Phone, req.Address)
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	updated, err := store.GetMember(r.Context(), h.DB, member.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	c := callerFrom(r.Context())
	slog.Info("member updated", "user", c.Username, "member", member.Code)
	jsonResponse(w, http.StatusOK, updated)
}

func (h *MembersHandler) stats(w http.ResponseWriter, r *http.Request, memberID int64) {
	stats, err := store.GetMemberStats(r.Context(), h.DB, memberID, store.FormatDate(h.Lending.Today()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, stats)
}
