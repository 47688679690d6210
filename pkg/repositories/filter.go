package repositories

import (
	sqlsafe "github.com/jvaguiar05/smart-park-system/pkg/sql"
)

// ClientFilter restricts list queries to the clients a caller may see.
// All lifts the restriction for system administrators.
type ClientFilter struct {
	All bool
	IDs []int64
}

// AllClients is the unrestricted filter.
func AllClients() ClientFilter {
	return ClientFilter{All: true}
}

// OnlyClients restricts results to the given client ids.
func OnlyClients(ids ...int64) ClientFilter {
	return ClientFilter{IDs: ids}
}

func (f ClientFilter) apply(w *sqlsafe.Where, column string) {
	if f.All {
		return
	}
	if len(f.IDs) == 0 {
		w.Add("FALSE")
		return
	}
	w.Add(column + " = ANY(" + w.Arg(f.IDs) + ")")
}

func applyDeleted(w *sqlsafe.Where, column string, includeDeleted bool) {
	if !includeDeleted {
		w.Add(column + " IS NULL")
	}
}
