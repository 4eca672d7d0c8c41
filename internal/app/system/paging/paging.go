// internal/app/system/paging/paging.go
package paging

import (
	"net/http"
	"strconv"

	"github.com/dalemusser/waffle/pantry/query"
)

// PageSize is the default number of rows in a paged list.
const PageSize = 50

// MaxPageSize caps the "limit" query parameter.
const MaxPageSize = 500

// Page is an offset window over a list, 1-based from the caller's view.
type Page struct {
	Start int // 1-based index of the first row
	Limit int
}

// Offset returns the number of rows to skip.
func (p Page) Offset() int64 { return int64(p.Start - 1) }

// LimitPlusOne returns Limit+1 for look-ahead pagination
// (fetch one extra row to detect hasNext).
func (p Page) LimitPlusOne() int64 { return int64(p.Limit + 1) }

// Parse reads "start" and "limit" from the query string. Missing or invalid
// values fall back to 1 and PageSize; limit is clamped to MaxPageSize.
func Parse(r *http.Request) Page {
	return Page{
		Start: positive(query.Get(r, "start"), 1),
		Limit: min(positive(query.Get(r, "limit"), PageSize), MaxPageSize),
	}
}

func positive(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return def
	}
	return n
}

// Trim cuts a look-ahead fetch down to limit rows and reports whether more
// rows exist.
func Trim[T any](rows []T, limit int) ([]T, bool) {
	if len(rows) > limit {
		return rows[:limit], true
	}
	return rows, false
}
