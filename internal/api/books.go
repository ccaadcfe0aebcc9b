package api

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/erazemk/knjiznica/internal/imaging"
	"github.com/erazemk/knjiznica/internal/lending"
	"github.com/erazemk/knjiznica/internal/model"
	"github.com/erazemk/knjiznica/internal/store"
)

var (
	errBookHasLoans  = fmt.Errorf("%w: book has loan history", lending.ErrConflict)
	errStockTooLow   = fmt.Errorf("%w: stock below number of copies on loan", lending.ErrConflict)
	errDuplicateISBN = fmt.Errorf("%w: isbn already exists", lending.ErrConflict)
	errBadReference  = fmt.Errorf("%w: author or category does not exist", lending.ErrValidation)
)

// BooksHandler handles catalog book endpoints.
type BooksHandler struct {
	DB *sql.DB
}

type bookRequest struct {
	CategoryID int64  `json:"category_id"`
	AuthorID   int64  `json:"author_id"`
	Title      string `json:"title"`
	ISBN       string `json:"isbn"`
	Publisher  string `json:"publisher"`
	Year       int    `json:"year"`
	Stock      *int   `json:"stock"`
}

type bookListResponse struct {
	Books []model.Book `json:"books"`
	Total int          `json:"total"`
}

func (req *bookRequest) input() (store.BookInput, error) {
	req.Title = strings.TrimSpace(req.Title)
	req.ISBN = strings.TrimSpace(req.ISBN)
	if req.Title == "" || req.ISBN == "" {
		return store.BookInput{}, errors.New("title and isbn required")
	}
	if req.CategoryID <= 0 || req.AuthorID <= 0 {
		return store.BookInput{}, errors.New("category_id and author_id required")
	}
	stock := 1
	if req.Stock != nil {
		stock = *req.Stock
	}
	if stock < 0 {
		return store.BookInput{}, errors.New("stock must not be negative")
	}
	return store.BookInput{
		CategoryID: req.CategoryID,
		AuthorID:   req.AuthorID,
		Title:      req.Title,
		ISBN:       req.ISBN,
		Publisher:  req.Publisher,
		Year:       req.Year,
		Stock:      stock,
	}, nil
}

// bookWriteError translates constraint failures of book writes.
func bookWriteError(err error) error {
	switch {
	case store.IsUniqueViolation(err):
		return errDuplicateISBN
	case store.IsForeignKeyViolation(err):
		return errBadReference
	}
	return err
}

// List handles GET /api/books.
func (h *BooksHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	categoryID, ok1 := queryInt64(r, "category_id")
	authorID, ok2 := queryInt64(r, "author_id")
	limit, offset, ok3 := pagination(r)
	if !ok1 || !ok2 || !ok3 {
		jsonError(w, http.StatusBadRequest, "invalid query parameters")
		return
	}

	books, total, err := store.ListBooks(r.Context(), h.DB, store.BookFilter{
		Search:        strings.TrimSpace(q.Get("search")),
		CategoryID:    categoryID,
		AuthorID:      authorID,
		AvailableOnly: q.Get("available") == "true",
		Page:          store.Page{Limit: limit, Offset: offset},
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	if books == nil {
		books = []model.Book{}
	}
	jsonResponse(w, http.StatusOK, bookListResponse{Books: books, Total: total})
}

// Create handles POST /api/books.
func (h *BooksHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req bookRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	in, err := req.input()
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	book, err := store.CreateBook(r.Context(), h.DB, in)
	if err != nil {
		writeError(w, r, bookWriteError(err))
		return
	}

	c := callerFrom(r.Context())
	slog.Info("book created", "user", c.Username, "book", book.Title, "isbn", book.ISBN, "stock", book.Stock)
	jsonResponse(w, http.StatusCreated, book)
}

// Get handles GET /api/books/{id}.
func (h *BooksHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid book id")
		return
	}
	book, err := store.GetBook(r.Context(), h.DB, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if book == nil {
		writeError(w, r, lending.ErrBookNotFound)
		return
	}
	jsonResponse(w, http.StatusOK, book)
}

// Update handles PUT /api/books/{id}. Stock may not drop below the number
// of copies currently on loan.
func (h *BooksHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid book id")
		return
	}

	var req bookRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	in, err := req.input()
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	var book *model.Book
	err = store.WithTx(r.Context(), h.DB, func(tx *sql.Tx) error {
		existing, err := store.GetBook(r.Context(), tx, id)
		if err != nil {
			return err
		}
		if existing == nil {
			return lending.ErrBookNotFound
		}
		if req.Stock == nil {
			in.Stock = existing.Stock
		}
		if in.Stock < existing.ActiveLoans {
			return errStockTooLow
		}
		if err := store.UpdateBook(r.Context(), tx, id, in); err != nil {
			return bookWriteError(err)
		}
		book, err = store.GetBook(r.Context(), tx, id)
		return err
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	c := callerFrom(r.Context())
	slog.Info("book updated", "user", c.Username, "book", book.Title, "stock", book.Stock)
	jsonResponse(w, http.StatusOK, book)
}

// Delete handles DELETE /api/books/{id}.
func (h *BooksHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid book id")
		return
	}

	var title string
	err := store.WithTx(r.Context(), h.DB, func(tx *sql.Tx) error {
		book, err := store.GetBook(r.Context(), tx, id)
		if err != nil {
			return err
		}
		if book == nil {
			return lending.ErrBookNotFound
		}
		title = book.Title
		used, err := store.BookHasLoans(r.Context(), tx, id)
		if err != nil {
			return err
		}
		if used {
			return errBookHasLoans
		}
		return store.DeleteBook(r.Context(), tx, id)
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	c := callerFrom(r.Context())
	slog.Info("book deleted", "user", c.Username, "book", title)
	jsonResponse(w, http.StatusOK, message("book deleted"))
}

// UploadCover handles PUT /api/books/{id}/cover. The multipart field
// "cover" is normalised to a JPEG before it is stored.
func (h *BooksHandler) UploadCover(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid book id")
		return
	}

	book, err := store.GetBook(r.Context(), h.DB, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if book == nil {
		writeError(w, r, lending.ErrBookNotFound)
		return
	}

	// Leave room for multipart framing around the image.
	r.Body = http.MaxBytesReader(w, r.Body, imaging.MaxUploadBytes+64<<10)
	if err := r.ParseMultipartForm(imaging.MaxUploadBytes); err != nil {
		jsonError(w, http.StatusBadRequest, "file too large or invalid multipart form")
		return
	}

	file, _, err := r.FormFile("cover")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "cover file required")
		return
	}
	defer file.Close()

	cover, err := imaging.ProcessCover(file)
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := store.SetBookCover(r.Context(), h.DB, id, cover.Data, cover.MIME); err != nil {
		writeError(w, r, err)
		return
	}

	c := callerFrom(r.Context())
	slog.Info("book cover uploaded", "user", c.Username, "book", book.Title,
		"width", cover.Width, "height", cover.Height, "bytes", len(cover.Data))
	jsonResponse(w, http.StatusOK, message("cover uploaded"))
}

// GetCover handles GET /api/books/{id}/cover.
func (h *BooksHandler) GetCover(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid book id")
		return
	}

	data, mime, err := store.GetBookCover(r.Context(), h.DB, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if data == nil {
		jsonError(w, http.StatusNotFound, "no cover")
		return
	}

	w.Header().Set("Content-Type", mime)
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Write(data)
}
