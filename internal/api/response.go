package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/erazemk/knjiznica/internal/lending"
	"github.com/erazemk/knjiznica/internal/model"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// maxBodyBytes limits JSON request bodies.
const maxBodyBytes = 1 << 20

// jsonResponse writes a JSON response with the given status code.
func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("encoding response", "error", err)
		}
	}
}

// jsonError writes a JSON error response.
func jsonError(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, map[string]string{"error": message})
}

// writeError maps an engine error to its HTTP status. Unknown errors are
// logged and reported as 500 without details.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, lending.ErrValidation):
		jsonError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, lending.ErrNotFound):
		jsonError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, lending.ErrConflict):
		jsonError(w, http.StatusConflict, err.Error())
	case errors.Is(err, lending.ErrForbidden):
		jsonError(w, http.StatusForbidden, err.Error())
	default:
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		jsonError(w, http.StatusInternalServerError, "internal error")
	}
}

// decodeJSON decodes a JSON request body into the given target.
func decodeJSON(w http.ResponseWriter, r *http.Request, target any) error {
	defer r.Body.Close()
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(target)
}

// pathID parses the {id} path parameter.
func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	return id, err == nil && id > 0
}

// queryInt64 parses an optional positive integer query parameter.
func queryInt64(r *http.Request, name string) (int64, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, true
	}
	n, err := strconv.ParseInt(v, 10, 64)
	return n, err == nil && n > 0
}

// queryUint parses an optional non-negative integer query parameter.
func queryUint(r *http.Request, name string, def uint) (uint, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, true
	}
	n, err := strconv.ParseUint(v, 10, 32)
	return uint(n), err == nil
}

// queryDate parses an optional YYYY-MM-DD query parameter.
func queryDate(r *http.Request, name string) (*time.Time, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return nil, true
	}
	t, err := time.Parse(model.DateLayout, v)
	if err != nil {
		return nil, false
	}
	return &t, true
}

func validDate(s string) bool {
	_, err := time.Parse(model.DateLayout, s)
	return err == nil
}

// pagination reads limit and offset, capping limit at maxPageSize.
func pagination(r *http.Request) (limit, offset uint, ok bool) {
	limit, ok = queryUint(r, "limit", defaultPageSize)
	if !ok {
		return 0, 0, false
	}
	if limit == 0 || limit > maxPageSize {
		limit = maxPageSize
	}
	offset, ok = queryUint(r, "offset", 0)
	return limit, offset, ok
}

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// message is the body of responses without an entity.
func message(text string) map[string]string {
	return map[string]string{"message": text}
}
