package model

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/ifiokjr/schemafire/internal/docdb"
	"github.com/ifiokjr/schemafire/internal/schema"
)

// runner executes one model run. The host transaction may invoke attempt
// several times on contention; everything an attempt needs is derived from
// the model's action log and reference, which stay immutable for the run.
type runner struct {
	model *Model
	cfg   RunConfig
	log   []action
}

// attempt replays the queued actions against a live transaction and returns
// the final state. The decision order is: delete wins outright; a query
// resolves the target first; callbacks run against fresh data and may add
// actions; then creation takes precedence over the update-merge path.
func (r *runner) attempt(ctx context.Context, tx docdb.Transaction) (txState, error) {
	st := newTxState(r.model.ref, r.model.rawData)

	if hasKind(r.log, actionDelete) {
		return r.runDelete(tx, st)
	}

	if q, ok := queryAction(r.log); ok {
		var err error
		st, err = r.stepQuery(tx, st, q.clauses)
		if err != nil {
			return st, err
		}
	}

	if hasKind(r.log, actionCallback) {
		var err error
		if st.sync == nil {
			st, err = r.stepGet(tx, st)
			if err != nil {
				return st, err
			}
		}
		st, err = r.runCallbacks(ctx, st)
		if err != nil {
			return st, err
		}
	}

	merged := append(slices.Clone(r.log), st.actions...)
	data := foldData(nil, merged, true)
	dataWithoutDeletes := foldData(nil, merged, false)

	if hasKind(merged, actionFind) && st.sync == nil {
		var err error
		st, err = r.stepGet(tx, st)
		if err != nil {
			return st, err
		}
	}

	if hasKind(merged, actionFindOrCreate) {
		return r.runFindOrCreate(tx, st, merged, dataWithoutDeletes)
	}

	if hasKind(merged, actionCreate) {
		return r.runCreate(tx, st, dataWithoutDeletes, StatusForceCreated)
	}

	if r.cfg.ForceGet && st.sync == nil {
		var err error
		st, err = r.stepGet(tx, st)
		if err != nil {
			return st, err
		}
	}

	if len(data) == 0 {
		return st, nil
	}
	return r.runUpdate(tx, st, data)
}

// runDelete handles the delete branch. When the mirror rule keys its target
// off a designated field that is not yet known locally, a read happens first
// so the mirror document can be resolved.
func (r *runner) runDelete(tx docdb.Transaction, st txState) (txState, error) {
	if st.ref.ID == "" {
		return st, contractErr("delete", "query did not resolve to a document")
	}

	if rule := r.model.schema.Mirror; rule != nil && rule.IDField != "" {
		if _, known := st.rawData[rule.IDField]; !known {
			var err error
			st, err = r.stepGet(tx, st)
			if err != nil {
				return st, err
			}
		}
	}

	if err := r.mirrorDelete(tx, st); err != nil {
		return st, err
	}

	if err := tx.Delete(st.ref); err != nil {
		return st, fmt.Errorf("delete %s: %w", st.ref.Path(), err)
	}
	st = st.markRun(actionDelete)
	st.status = StatusDeleted
	return st, nil
}

// runFindOrCreate creates the document only when it does not exist yet.
// When it does exist the creation payload is discarded and only queued
// updates, if any, still apply.
func (r *runner) runFindOrCreate(tx docdb.Transaction, st txState, merged []action, dataWithoutDeletes map[string]any) (txState, error) {
	if st.sync == nil {
		var err error
		st, err = r.stepGet(tx, st)
		if err != nil {
			return st, err
		}
	}

	if !st.exists(r.model.existsViaCreation) {
		return r.runCreate(tx, st, dataWithoutDeletes, StatusCreated)
	}

	st = st.clone()
	st.status = StatusFound

	updates := foldUpdates(nil, merged, true)
	if len(updates) == 0 {
		return st, nil
	}
	return r.runUpdate(tx, st, updates)
}

// runCreate validates and writes the full document, replacing whatever was
// there, then performs the mirror side effect.
func (r *runner) runCreate(tx docdb.Transaction, st txState, data map[string]any, status RunStatus) (txState, error) {
	if err := r.validate(data, nil); err != nil {
		return st, err
	}

	if st.ref.ID == "" {
		// query-bound model whose query found nothing: mint a fresh doc
		st = st.clone()
		st.ref = docdb.CollectionRef{Name: r.model.schema.Collection}.NewDoc()
	}

	payload := withBaseData(data, r.model.schema.Version, true)
	if err := tx.Set(st.ref, payload, docdb.SetOptions{}); err != nil {
		return st, fmt.Errorf("create %s: %w", st.ref.Path(), err)
	}

	kind := actionCreate
	if status == StatusCreated {
		kind = actionFindOrCreate
	}
	st = st.markRun(kind)
	st.status = status
	st.rawData = docdb.Resolve(payload, time.Now().UTC())

	if err := r.mirrorWrite(tx, st, data); err != nil {
		return st, err
	}
	return st, nil
}

// runUpdate validates the changed fields against a narrowed codec and
// performs a merge write, then the mirror side effect.
func (r *runner) runUpdate(tx docdb.Transaction, st txState, data map[string]any) (txState, error) {
	if err := r.validate(data, dataKeys(data)); err != nil {
		return st, err
	}

	if st.ref.ID == "" {
		return st, contractErr("update", "query did not resolve to a document")
	}

	payload := withBaseData(data, r.model.schema.Version, false)
	if err := tx.Set(st.ref, payload, docdb.SetOptions{Merge: true}); err != nil {
		return st, fmt.Errorf("update %s: %w", st.ref.Path(), err)
	}

	st = st.markRun(actionUpdate)
	st.status = StatusUpdated
	st.rawData = docdb.Merge(st.rawData, payload, time.Now().UTC())

	if err := r.mirrorWrite(tx, st, data); err != nil {
		return st, err
	}
	return st, nil
}

// stepGet reads the target document and replaces the state's raw data with
// the server values.
func (r *runner) stepGet(tx docdb.Transaction, st txState) (txState, error) {
	if st.ref.ID == "" {
		// nothing to read for an unresolved query-bound model
		return st, nil
	}

	snap, err := tx.Get(st.ref)
	if err != nil {
		return st, fmt.Errorf("get %s: %w", st.ref.Path(), err)
	}

	st = st.markRun(actionFind)
	st.sync = &syncData{snap: snap}
	if snap.Exists {
		st.rawData = cloneData(snap.Data)
		st.status = StatusFound
	} else {
		st.status = StatusNotFound
	}
	return st, nil
}

// stepQuery resolves the queued query clauses to a concrete document.
func (r *runner) stepQuery(tx docdb.Transaction, st txState, clauses []docdb.Clause) (txState, error) {
	coll := docdb.CollectionRef{Name: r.model.schema.Collection}
	snap, found, err := tx.Query(coll, clauses)
	if err != nil {
		return st, fmt.Errorf("query %s: %w", coll.Name, err)
	}

	st = st.markRun(actionQuery)
	if found {
		st.ref = snap.Ref
		st.sync = &syncData{snap: snap}
		st.rawData = cloneData(snap.Data)
		st.status = StatusFound
	} else {
		st.sync = &syncData{snap: docdb.Snapshot{Ref: st.ref}}
		st.status = StatusNotFound
	}
	return st, nil
}

// runCallbacks invokes every queued callback in insertion order against a
// materialized view. Actions the callbacks enqueue join this attempt only;
// callback errors are recorded and surfaced after the run commits.
func (r *runner) runCallbacks(ctx context.Context, st txState) (txState, error) {
	st = st.markRun(actionCallback)

	// one shared view of the data, so later callbacks observe what earlier
	// ones changed
	data := r.materialize(st)
	for _, cb := range callbacks(r.log) {
		view := &View{model: r.model, data: data, state: st}
		if err := cb(ctx, view); err != nil {
			st = st.withError(err)
		}
		if len(view.actions) > 0 {
			st = st.clone()
			st.actions = append(st.actions, view.actions...)
		}
	}
	return st, nil
}

// materialize builds the data a callback sees: schema defaults behind the
// current raw data until a run has succeeded, real values only afterwards.
func (r *runner) materialize(st txState) map[string]any {
	out := make(map[string]any)
	if !r.model.hasRunSuccessfully {
		for k, v := range r.model.schema.Defaults {
			out[k] = v
		}
		out[schema.FieldSchemaVersion] = r.model.schema.Version
		out[schema.FieldCreatedAt] = time.Time{}
		out[schema.FieldUpdatedAt] = time.Time{}
	}
	for k, v := range st.rawData {
		out[k] = v
	}
	return out
}

// validate decodes the payload when auto-validation is enabled. keys
// narrows the codec to the fields being written; nil means the full codec.
func (r *runner) validate(data map[string]any, keys []string) error {
	if !r.cfg.AutoValidate {
		return nil
	}
	codec := r.model.schema.Codec()
	if keys != nil {
		codec = codec.Pick(keys)
	}
	if err := codec.Decode(stripBaseFields(data)); err != nil {
		return err
	}
	return nil
}

// withBaseData stamps system-managed fields onto a write payload.
func withBaseData(data map[string]any, version int, creating bool) map[string]any {
	out := make(map[string]any, len(data)+3)
	for k, v := range data {
		out[k] = v
	}
	out[schema.FieldSchemaVersion] = version
	out[schema.FieldUpdatedAt] = docdb.ServerTimestamp
	if creating {
		out[schema.FieldCreatedAt] = docdb.ServerTimestamp
	}
	return out
}

func stripBaseFields(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		if schema.IsBaseField(k) {
			continue
		}
		out[k] = v
	}
	return out
}

func dataKeys(data map[string]any) []string {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	return keys
}

func cloneData(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = v
	}
	return out
}
