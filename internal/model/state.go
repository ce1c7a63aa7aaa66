package model

import (
	"maps"
	"slices"

	"github.com/ifiokjr/schemafire/internal/docdb"
)

// RunStatus describes what the most recent run did to the document.
type RunStatus string

const (
	StatusFound        RunStatus = "found"
	StatusCreated      RunStatus = "created"
	StatusForceCreated RunStatus = "force-created"
	StatusUpdated      RunStatus = "updated"
	StatusDeleted      RunStatus = "deleted"
	StatusNotFound     RunStatus = "not-found"
)

// syncData carries a freshly read snapshot through the transaction state.
type syncData struct {
	snap docdb.Snapshot
}

// txState is the record threaded through one transaction attempt. Step
// functions replace it rather than mutating it in place, so a retried
// attempt always starts from the same initial inputs.
type txState struct {
	// ref is the attempt's target document. A query step may resolve it.
	ref docdb.DocRef
	// rawData is the authoritative field data as known mid-transaction.
	rawData map[string]any
	// actions collects anything callbacks enqueue during this attempt.
	actions []action
	// actionsRun records which step kinds actually executed.
	actionsRun map[actionKind]bool
	// errors holds non-fatal failures surfaced after the run commits.
	errors []error
	// status is the run outcome as known so far.
	status RunStatus
	// sync is set once a read has occurred.
	sync *syncData
}

func newTxState(ref docdb.DocRef, rawData map[string]any) txState {
	return txState{
		ref:        ref,
		rawData:    maps.Clone(rawData),
		actionsRun: make(map[actionKind]bool),
	}
}

// clone returns a copy whose maps and slices are safe to modify.
func (s txState) clone() txState {
	out := s
	out.rawData = maps.Clone(s.rawData)
	out.actions = slices.Clone(s.actions)
	out.actionsRun = maps.Clone(s.actionsRun)
	out.errors = slices.Clone(s.errors)
	return out
}

// markRun returns a copy with the action kind recorded as executed.
func (s txState) markRun(kind actionKind) txState {
	out := s.clone()
	out.actionsRun[kind] = true
	return out
}

// withError returns a copy with a non-fatal error appended.
func (s txState) withError(err error) txState {
	out := s.clone()
	out.errors = append(out.errors, err)
	return out
}

// exists reports whether the document is known to exist in this attempt,
// accounting for creations observed before any read happened.
func (s txState) exists(existsViaCreation bool) bool {
	if s.sync != nil {
		return s.sync.snap.Exists
	}
	return existsViaCreation
}
