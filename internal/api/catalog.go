package api

import (
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/erazemk/knjiznica/internal/lending"
	"github.com/erazemk/knjiznica/internal/model"
	"github.com/erazemk/knjiznica/internal/store"
)

var (
	errAuthorInUse     = fmt.Errorf("%w: author still has books", lending.ErrConflict)
	errCategoryInUse   = fmt.Errorf("%w: category still has books", lending.ErrConflict)
	errAuthorMissing   = fmt.Errorf("%w: author not found", lending.ErrNotFound)
	errCategoryMissing = fmt.Errorf("%w: category not found", lending.ErrNotFound)
)

// AuthorsHandler handles author endpoints.
type AuthorsHandler struct {
	DB *sql.DB
}

type authorRequest struct {
	Name string `json:"name"`
	Bio  string `json:"bio"`
}

// List handles GET /api/authors.
func (h *AuthorsHandler) List(w http.ResponseWriter, r *http.Request) {
	authors, err := store.ListAuthors(r.Context(), h.DB)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if authors == nil {
		authors = []model.Author{}
	}
	jsonResponse(w, http.StatusOK, authors)
}

// Create handles POST /api/authors.
func (h *AuthorsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req authorRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		jsonError(w, http.StatusBadRequest, "name required")
		return
	}

	author, err := store.CreateAuthor(r.Context(), h.DB, req.Name, req.Bio)
	if err != nil {
		writeError(w, r, err)
		return
	}

	c := callerFrom(r.Context())
	slog.Info("author created", "user", c.Username, "author", author.Name)
	jsonResponse(w, http.StatusCreated, author)
}

// Get handles GET /api/authors/{id}.
func (h *AuthorsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid author id")
		return
	}
	author, err := store.GetAuthor(r.Context(), h.DB, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if author == nil {
		writeError(w, r, errAuthorMissing)
		return
	}
	jsonResponse(w, http.StatusOK, author)
}

// Update handles PUT /api/authors/{id}.
func (h *AuthorsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid author id")
		return
	}

	var req authorRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		jsonError(w, http.StatusBadRequest, "name required")
		return
	}

	if err := store.UpdateAuthor(r.Context(), h.DB, id, req.Name, req.Bio); err != nil {
		writeError(w, r, err)
		return
	}
	author, err := store.GetAuthor(r.Context(), h.DB, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if author == nil {
		writeError(w, r, errAuthorMissing)
		return
	}

	c := callerFrom(r.Context())
	slog.Info("author updated", "user", c.Username, "author", author.Name)
	jsonResponse(w, http.StatusOK, author)
}

// Delete handles DELETE /api/authors/{id}.
func (h *AuthorsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid author id")
		return
	}

	var name string
	err := store.WithTx(r.Context(), h.DB, func(tx *sql.Tx) error {
		author, err := store.GetAuthor(r.Context(), tx, id)
		if err != nil {
			return err
		}
		if author == nil {
			return errAuthorMissing
		}
		name = author.Name
		used, err := store.AuthorHasBooks(r.Context(), tx, id)
		if err != nil {
			return err
		}
		if used {
			return errAuthorInUse
		}
		return store.DeleteAuthor(r.Context(), tx, id)
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	c := callerFrom(r.Context())
	slog.Info("author deleted", "user", c.Username, "author", name)
	jsonResponse(w, http.StatusOK, message("author deleted"))
}

// CategoriesHandler handles category endpoints.
type CategoriesHandler struct {
	DB *sql.DB
}

type categoryRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// List handles GET /api/categories.
func (h *CategoriesHandler) List(w http.ResponseWriter, r *http.Request) {
	categories, err := store.ListCategories(r.Context(), h.DB)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if categories == nil {
		categories = []model.Category{}
	}
	jsonResponse(w, http.StatusOK, categories)
}

// Create handles POST /api/categories.
func (h *CategoriesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		jsonError(w, http.StatusBadRequest, "name required")
		return
	}

	category, err := store.CreateCategory(r.Context(), h.DB, req.Name, req.Description)
	if store.IsUniqueViolation(err) {
		jsonError(w, http.StatusConflict, "category already exists")
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}

	c := callerFrom(r.Context())
	slog.Info("category created", "user", c.Username, "category", category.Name)
	jsonResponse(w, http.StatusCreated, category)
}

// Get handles GET /api/categories/{id}.
func (h *CategoriesHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid category id")
		return
	}
	category, err := store.GetCategory(r.Context(), h.DB, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if category == nil {
		writeError(w, r, errCategoryMissing)
		return
	}
	jsonResponse(w, http.StatusOK, category)
}

// Update handles PUT /api/categories/{id}.
func (h *CategoriesHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid category id")
		return
	}

	var req categoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		jsonError(w, http.StatusBadRequest, "name required")
		return
	}

	err := store.UpdateCategory(r.Context(), h.DB, id, req.Name, req.Description)
	if store.IsUniqueViolation(err) {
		jsonError(w, http.StatusConflict, "category already exists")
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	category, err := store.GetCategory(r.Context(), h.DB, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if category == nil {
		writeError(w, r, errCategoryMissing)
		return
	}

	c := callerFrom(r.Context())
	slog.Info("category updated", "user", c.Username, "category", category.Name)
	jsonResponse(w, http.StatusOK, category)
}

// Delete handles DELETE /api/categories/{id}.
func (h *CategoriesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid category id")
		return
	}

	var name string
	err := store.WithTx(r.Context(), h.DB, func(tx *sql.Tx) error {
		category, err := store.GetCategory(r.Context(), tx, id)
		if err != nil {
			return err
		}
		if category == nil {
			return errCategoryMissing
		}
		name = category.Name
		used, err := store.CategoryHasBooks(r.Context(), tx, id)
		if err != nil {
			return err
		}
		if used {
			return errCategoryInUse
		}
		return store.DeleteCategory(r.Context(), tx, id)
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	c := callerFrom(r.Context())
	slog.Info("category deleted", "user", c.Username, "category", name)
	jsonResponse(w, http.StatusOK, message("category deleted"))
}
