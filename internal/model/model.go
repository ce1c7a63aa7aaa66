// Package model implements the typed document-model layer: a Model binds a
// schema to one document, queues mutations in an action log, and commits all
// of them atomically through the host database's transaction primitive,
// mirroring selected fields into a secondary document on every write.
package model

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"time"

	"github.com/ifiokjr/schemafire/internal/docdb"
	"github.com/ifiokjr/schemafire/internal/schema"
)

// RunConfig aliases the per-run options declared on the schema.
type RunConfig = schema.RunConfig

// RunOverride aliases the caller-supplied per-run deviations merged over the
// schema defaults. Nil fields keep the schema value; a supplied false
// disables an option the schema enables.
type RunOverride = schema.RunOverride

// Model is a long-lived object bound to exactly one document. Mutation
// methods only queue actions and adjust the optimistic local view; no I/O
// happens until Run. A Model is not safe for concurrent use.
type Model struct {
	schema *schema.Schema
	db     docdb.Database
	logger *slog.Logger

	ref docdb.DocRef

	log     []action
	rawData map[string]any

	// existsViaCreation answers "exists" once a create or update has been
	// observed, before any read happens.
	existsViaCreation bool
	// hasRunSuccessfully flips default-value masking off permanently once
	// any run commits.
	hasRunSuccessfully bool

	lastSync      *docdb.Snapshot
	lastRunStatus RunStatus
	actionsRun    map[actionKind]bool
	runErrors     []error
}

// Option configures a new Model.
type Option func(*Model) error

// WithID binds the model to the document with the given id.
func WithID(id string) Option {
	return func(m *Model) error {
		if id == "" {
			return contractErr("new model", "document id must not be empty")
		}
		m.ref = docdb.CollectionRef{Name: m.schema.Collection}.Doc(id)
		return nil
	}
}

// WithRef binds the model to an explicit document reference.
func WithRef(ref docdb.DocRef) Option {
	return func(m *Model) error {
		if ref.Collection != m.schema.Collection {
			return contractErr("new model", "reference collection %q does not match schema collection %q",
				ref.Collection, m.schema.Collection)
		}
		m.ref = ref
		return nil
	}
}

// WithQuery binds the model to the first document matching the clauses. The
// reference is resolved during Run.
func WithQuery(clauses ...docdb.Clause) Option {
	return func(m *Model) error {
		if len(clauses) == 0 {
			return contractErr("new model", "query requires at least one clause")
		}
		m.ref = docdb.DocRef{Collection: m.schema.Collection}
		m.log = append(m.log, action{kind: actionQuery, clauses: clauses})
		return nil
	}
}

// WithLogger sets the logger used for non-fatal notes such as mirror skips.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Model) error {
		m.logger = logger
		return nil
	}
}

// New creates a Model for the schema's collection. Without a binding option
// the model points at a fresh document with a generated id.
func New(sch *schema.Schema, db docdb.Database, opts ...Option) (*Model, error) {
	if err := sch.Validate(); err != nil {
		return nil, fmt.Errorf("invalid schema: %w", err)
	}

	m := &Model{
		schema:  sch,
		db:      db,
		logger:  slog.Default(),
		rawData: make(map[string]any),
	}
	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, err
		}
	}
	if m.ref.IsZero() {
		m.ref = docdb.CollectionRef{Name: sch.Collection}.NewDoc()
	}
	return m, nil
}

// Schema returns the model's schema.
func (m *Model) Schema() *schema.Schema { return m.schema }

// Ref returns the bound document reference. For query-bound models the id is
// empty until a run resolves the query.
func (m *Model) Ref() docdb.DocRef { return m.ref }

// ID returns the bound document id.
func (m *Model) ID() string { return m.ref.ID }

// Create queues a creation. With force the document is written even when it
// already exists (overwrite semantics); without force the creation only
// happens if no document exists yet (find-or-create). The payload merges
// into the optimistic local view immediately.
func (m *Model) Create(data map[string]any, force bool) error {
	if len(data) == 0 {
		return contractErr("create", "creation requires data")
	}

	kind := actionCreate
	if !force {
		kind = actionFindOrCreate
	}
	m.log = append(m.log, action{kind: kind, data: maps.Clone(data)})
	for k, v := range data {
		m.rawData[k] = v
	}
	return nil
}

// Update queues field updates, one action per field so later updates win per
// field regardless of how payloads were grouped. An empty payload is a
// no-op. The values take effect in the optimistic local view immediately.
func (m *Model) Update(data map[string]any) error {
	if len(data) == 0 {
		return nil
	}
	for k, v := range data {
		m.log = append(m.log, action{kind: actionUpdate, data: map[string]any{k: v}})
		m.rawData[k] = v
	}
	return nil
}

// Delete queues deletions. Without keys the whole document is deleted on the
// next run; the optimistic local view is left alone until the deletion
// commits. With keys the named fields are removed from the local view
// immediately and queued as field-delete markers. Base fields are protected.
func (m *Model) Delete(keys ...string) error {
	if len(keys) == 0 {
		m.log = append(m.log, action{kind: actionDelete})
		return nil
	}

	for _, k := range keys {
		if schema.IsBaseField(k) {
			return &ProtectedFieldError{Field: k}
		}
	}
	for _, k := range keys {
		delete(m.rawData, k)
		m.log = append(m.log, action{kind: actionUpdate, data: map[string]any{k: docdb.FieldDelete}})
	}
	return nil
}

// Find queues a read of the document, so the next run syncs the local view
// with the server state even when nothing else is queued.
func (m *Model) Find() {
	m.log = append(m.log, action{kind: actionFind})
}

// Attach queues a callback to run inside the next transaction.
func (m *Model) Attach(cb Callback) {
	m.log = append(m.log, action{kind: actionCallback, callback: cb})
}

// Exists reports whether the document is known to exist: from the last read
// snapshot when one is available, otherwise from observed creations.
func (m *Model) Exists() bool {
	if m.existsViaCreation {
		return true
	}
	if m.lastSync != nil {
		return m.lastSync.Exists
	}
	return false
}

// Data returns a copy of the model's field view. Before the first
// successful run, schema defaults and mock base values fill in behind the
// optimistic data; afterwards only real values show.
func (m *Model) Data() map[string]any {
	out := make(map[string]any)
	if !m.hasRunSuccessfully {
		for k, v := range m.schema.Defaults {
			out[k] = v
		}
		out[schema.FieldSchemaVersion] = m.schema.Version
		out[schema.FieldCreatedAt] = time.Time{}
		out[schema.FieldUpdatedAt] = time.Time{}
	}
	for k, v := range m.rawData {
		out[k] = v
	}
	return out
}

// Get returns a single field from the model's view.
func (m *Model) Get(field string) (any, bool) {
	v, ok := m.Data()[field]
	return v, ok
}

// ToJSON renders the model's view as a plain map with timestamps, geopoints,
// and references as tagged {"type", "value"} shapes.
func (m *Model) ToJSON() map[string]any {
	return docdb.EncodeData(m.Data())
}

// Validate decodes the current local data against the full schema codec and
// returns the validation error, if any.
func (m *Model) Validate() *schema.ValidationError {
	return m.schema.Codec().Decode(m.rawData)
}

// LastRunStatus reports what the most recent run did.
func (m *Model) LastRunStatus() RunStatus { return m.lastRunStatus }

// RunActions names the action kinds the most recent run actually executed.
func (m *Model) RunActions() []string {
	var names []string
	for kind := range m.actionsRun {
		names = append(names, kind.String())
	}
	return names
}

// PendingActions reports how many actions are queued for the next run.
func (m *Model) PendingActions() int { return len(m.log) }

// Run commits every queued action atomically. The host transaction may
// retry the attempt on write conflicts; each attempt starts from a fresh
// state derived from the action log. On success the action log is cleared
// and the local view reconciled with the transaction result; on failure the
// optimistic local state is left as-is and the error returned. An error
// returned after reconciliation (a callback failure or a failed post-create
// refresh) means the commit itself went through.
func (m *Model) Run(ctx context.Context, override *RunOverride) error {
	cfg := m.schema.RunOptions().Merge(override)

	// Reset bookkeeping from the previous run.
	m.lastRunStatus = ""
	m.actionsRun = nil
	m.runErrors = nil

	if len(m.log) == 0 && !cfg.ForceGet {
		return nil
	}

	r := &runner{model: m, cfg: cfg, log: m.log}

	var final txState
	err := m.db.RunTransaction(ctx, func(tx docdb.Transaction) error {
		st, err := r.attempt(ctx, tx)
		if err != nil {
			return err
		}
		final = st
		return nil
	}, docdb.TxOptions{MaxAttempts: cfg.MaxAttempts})
	if err != nil {
		return err
	}

	m.reconcile(final)

	if cfg.ForceGet && (final.status == StatusCreated || final.status == StatusForceCreated) {
		if err := m.refresh(ctx); err != nil {
			// the commit already succeeded; surface the failed refresh the
			// same way callback errors are surfaced
			m.runErrors = append(m.runErrors, err)
		}
	}

	if len(m.runErrors) > 0 {
		return m.runErrors[0]
	}
	return nil
}

// reconcile applies a committed transaction state back onto the model.
func (m *Model) reconcile(final txState) {
	m.lastRunStatus = final.status
	m.actionsRun = final.actionsRun
	m.runErrors = final.errors
	m.log = nil
	m.hasRunSuccessfully = true

	if final.ref.ID != "" {
		m.ref = final.ref
	}
	if final.sync != nil {
		snap := final.sync.snap
		m.lastSync = &snap
	}

	switch final.status {
	case StatusDeleted:
		m.rawData = make(map[string]any)
		m.lastSync = &docdb.Snapshot{Ref: m.ref}
		m.existsViaCreation = false
	default:
		m.rawData = final.rawData
		m.existsViaCreation = final.status == StatusCreated ||
			final.status == StatusForceCreated ||
			final.status == StatusUpdated
	}
}

// refresh re-reads the document and replaces the local view with the
// server-confirmed values.
func (m *Model) refresh(ctx context.Context) error {
	var snap docdb.Snapshot
	err := m.db.RunTransaction(ctx, func(tx docdb.Transaction) error {
		var err error
		snap, err = tx.Get(m.ref)
		return err
	}, docdb.TxOptions{MaxAttempts: 1})
	if err != nil {
		return fmt.Errorf("refresh after create: %w", err)
	}

	m.lastSync = &snap
	if snap.Exists {
		m.rawData = maps.Clone(snap.Data)
	}
	return nil
}
