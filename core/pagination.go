package core

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/marcmoiagese/SpartaClaims/db"
)

const (
	defaultPageSize = 25
	maxPageSize     = 200
)

// Pagination és la pàgina demanada en un llistat.
type Pagination struct {
	Page     int
	PageSize int
	Offset   int
}

func parseListPageSize(val string) (int, error) {
	val = strings.TrimSpace(val)
	if val == "" {
		return defaultPageSize, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil || n < 1 || n > maxPageSize {
		return 0, validationf("pageSize must be between 1 and %d", maxPageSize)
	}
	return n, nil
}

func parseListPage(val string) (int, error) {
	val = strings.TrimSpace(val)
	if val == "" {
		return 1, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil || n < 1 {
		return 0, validationf("page must be a positive integer")
	}
	return n, nil
}

func buildPagination(r *http.Request) (Pagination, error) {
	q := r.URL.Query()
	page, err := parseListPage(q.Get("page"))
	if err != nil {
		return Pagination{}, err
	}
	size, err := parseListPageSize(q.Get("pageSize"))
	if err != nil {
		return Pagination{}, err
	}
	return Pagination{Page: page, PageSize: size, Offset: (page - 1) * size}, nil
}

// listQuery construeix la consulta paginada. sortable relaciona el nom públic
// del camp amb la columna; "-camp" ordena de manera descendent.
func listQuery(r *http.Request, sortable map[string]string) (db.ListQuery, error) {
	p, err := buildPagination(r)
	if err != nil {
		return db.ListQuery{}, err
	}
	lq := db.ListQuery{Limit: p.PageSize, Offset: p.Offset}
	if s := strings.TrimSpace(r.URL.Query().Get("sort")); s != "" {
		desc := strings.HasPrefix(s, "-")
		col, ok := sortable[strings.TrimPrefix(s, "-")]
		if !ok {
			return db.ListQuery{}, validationf("unsupported sort field: %s", strings.TrimPrefix(s, "-"))
		}
		lq.Sort = col
		lq.Desc = desc
	}
	return lq, nil
}

// writeList escriu una pàgina amb la capçalera X-Total-Count.
func writeList[T any](w http.ResponseWriter, items []T, total int) {
	if items == nil {
		items = []T{}
	}
	w.Header().Set("X-Total-Count", strconv.Itoa(total))
	writeJSON(w, http.StatusOK, items)
}
