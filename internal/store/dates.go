package store

import (
	"database/sql"
	"time"

	"github.com/erazemk/knjiznica/internal/model"
)

// dateArg converts an optional calendar date into its stored form.
func dateArg(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(model.DateLayout)
}

// FormatDate returns the stored form of a calendar date.
func FormatDate(t time.Time) string {
	return t.Format(model.DateLayout)
}

// parseDate converts a stored date back into a midnight-UTC time.
func parseDate(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t, err := time.Parse(model.DateLayout, s.String)
	if err != nil {
		return nil
	}
	return &t
}
