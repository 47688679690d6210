package sql

import (
	"strconv"
	"strings"
)

// Where accumulates AND-ed conditions and their positional arguments.
//
//	w := &Where{}
//	w.Add("e.deleted_at IS NULL")
//	w.Add("e.client_id = ANY(" + w.Arg(ids) + ")")
//	w.Search(term, "e.name", "e.city")
//	query := "SELECT ... FROM establishments e " + w.SQL()
//	rows, err := conn.Query(ctx, query, w.Args()...)
type Where struct {
	conds []string
	args  []any
}

// Arg binds v and returns its placeholder ($1, $2, ...).
func (w *Where) Arg(v any) string {
	w.args = append(w.args, v)
	return "$" + strconv.Itoa(len(w.args))
}

// Add appends a condition. Placeholders inside cond must come from Arg.
func (w *Where) Add(cond string) {
	w.conds = append(w.conds, cond)
}

// Search appends a case-insensitive substring match OR-ed across columns.
// An empty term adds nothing.
func (w *Where) Search(term string, columns ...string) {
	if term == "" || len(columns) == 0 {
		return
	}
	p := w.Arg(ContainsPattern(term))
	parts := make([]string, len(columns))
	for i, col := range columns {
		parts[i] = col + " ILIKE " + p
	}
	w.Add("(" + strings.Join(parts, " OR ") + ")")
}

// SQL renders "WHERE a AND b", or "" when there are no conditions.
func (w *Where) SQL() string {
	if len(w.conds) == 0 {
		return ""
	}
	return "WHERE " + strings.Join(w.conds, " AND ")
}

// Args returns the bound arguments in placeholder order.
func (w *Where) Args() []any {
	return w.args
}

// Page appends LIMIT and OFFSET placeholders and returns the clause.
func (w *Where) Page(limit, offset int) string {
	return "LIMIT " + w.Arg(limit) + " OFFSET " + w.Arg(offset)
}
