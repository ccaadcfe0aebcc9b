package store

import (
	"strings"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3" // dialect registration
)

// dialect builds SQLite statements with "?" placeholders.
var dialect = goqu.Dialect("sqlite3")

// likeEscaper escapes LIKE wildcards for use with ESCAPE '\'.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// Page restricts a list query. A zero Limit means no limit.
type Page struct {
	Limit  uint
	Offset uint
}

func (p Page) apply(ds *goqu.SelectDataset) *goqu.SelectDataset {
	if p.Limit > 0 {
		ds = ds.Limit(p.Limit)
	}
	if p.Offset > 0 {
		ds = ds.Offset(p.Offset)
	}
	return ds
}
