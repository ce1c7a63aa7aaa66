package model

import (
	"maps"

	"github.com/ifiokjr/schemafire/internal/docdb"
	"github.com/ifiokjr/schemafire/internal/schema"
)

// View is the read-consistent window a callback gets on the model during a
// transaction attempt. Mutations made through it queue actions that join the
// same attempt.
type View struct {
	model   *Model
	data    map[string]any
	state   txState
	actions []action
}

// Data returns a copy of the materialized field data.
func (v *View) Data() map[string]any {
	return maps.Clone(v.data)
}

// Get returns a single field from the materialized data.
func (v *View) Get(field string) (any, bool) {
	val, ok := v.data[field]
	return val, ok
}

// ID returns the document id as resolved for this attempt.
func (v *View) ID() string {
	return v.state.ref.ID
}

// Exists reports whether the document exists as of this attempt.
func (v *View) Exists() bool {
	return v.state.exists(v.model.existsViaCreation)
}

// Create queues a creation for this attempt.
func (v *View) Create(data map[string]any, force bool) error {
	if len(data) == 0 {
		return contractErr("create", "creation requires data")
	}
	kind := actionCreate
	if !force {
		kind = actionFindOrCreate
	}
	v.actions = append(v.actions, action{kind: kind, data: maps.Clone(data)})
	for k, val := range data {
		v.data[k] = val
	}
	return nil
}

// Update queues field updates for this attempt, one action per field.
func (v *View) Update(data map[string]any) error {
	if len(data) == 0 {
		return nil
	}
	for k, val := range data {
		v.actions = append(v.actions, action{kind: actionUpdate, data: map[string]any{k: val}})
		v.data[k] = val
	}
	return nil
}

// Delete removes the named fields. Whole-document deletion cannot be queued
// from a callback; the delete branch has already been decided by the time
// callbacks run.
func (v *View) Delete(keys ...string) error {
	if len(keys) == 0 {
		return contractErr("delete", "callbacks cannot delete the whole document")
	}
	for _, k := range keys {
		if schema.IsBaseField(k) {
			return &ProtectedFieldError{Field: k}
		}
	}
	for _, k := range keys {
		delete(v.data, k)
		v.actions = append(v.actions, action{kind: actionUpdate, data: map[string]any{k: docdb.FieldDelete}})
	}
	return nil
}
