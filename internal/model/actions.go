package model

import (
	"context"

	"github.com/ifiokjr/schemafire/internal/docdb"
)

// actionKind tags the variants of a queued action.
type actionKind uint8

const (
	actionCreate actionKind = iota + 1
	actionFindOrCreate
	actionUpdate
	actionDelete
	actionFind
	actionQuery
	actionCallback
)

// String names the kind for run reporting and logs.
func (k actionKind) String() string {
	switch k {
	case actionCreate:
		return "create"
	case actionFindOrCreate:
		return "find-or-create"
	case actionUpdate:
		return "update"
	case actionDelete:
		return "delete"
	case actionFind:
		return "find"
	case actionQuery:
		return "query"
	case actionCallback:
		return "callback"
	default:
		return "unknown"
	}
}

// Callback runs inside a transaction attempt against a live view of the
// model. Mutations made through the view join the same attempt. A returned
// error is recorded on the transaction state and surfaced after the run
// commits; it does not abort the attempt.
type Callback func(ctx context.Context, view *View) error

// action is one queued, not-yet-committed operation. Update actions carry a
// single field each so interleaved updates keep last-write-wins semantics.
type action struct {
	kind     actionKind
	data     map[string]any
	clauses  []docdb.Clause
	callback Callback
}

func hasKind(log []action, kind actionKind) bool {
	for _, a := range log {
		if a.kind == kind {
			return true
		}
	}
	return false
}

func queryAction(log []action) (action, bool) {
	for _, a := range log {
		if a.kind == actionQuery {
			return a, true
		}
	}
	return action{}, false
}

func callbacks(log []action) []Callback {
	var cbs []Callback
	for _, a := range log {
		if a.kind == actionCallback {
			cbs = append(cbs, a.callback)
		}
	}
	return cbs
}

// foldData folds create and update payloads over base in insertion order and
// returns a new map. Field-delete markers are kept as markers when
// includeDeletes is set, so a merge write removes those fields; otherwise
// they are suppressed entirely, keeping creation payloads clean.
func foldData(base map[string]any, log []action, includeDeletes bool) map[string]any {
	out := make(map[string]any, len(base))
	for k, v := range base {
		out[k] = v
	}
	for _, a := range log {
		switch a.kind {
		case actionCreate, actionFindOrCreate, actionUpdate:
			for k, v := range a.data {
				if s, ok := v.(docdb.Sentinel); ok && s == docdb.FieldDelete {
					if includeDeletes {
						out[k] = v
					} else {
						delete(out, k)
					}
					continue
				}
				out[k] = v
			}
		}
	}
	return out
}

// foldUpdates is foldData restricted to update actions. Used when a
// find-or-create resolves to an existing document: the creation payload must
// not overwrite server fields, but queued updates still apply.
func foldUpdates(base map[string]any, log []action, includeDeletes bool) map[string]any {
	updates := make([]action, 0, len(log))
	for _, a := range log {
		if a.kind == actionUpdate {
			updates = append(updates, a)
		}
	}
	return foldData(base, updates, includeDeletes)
}
