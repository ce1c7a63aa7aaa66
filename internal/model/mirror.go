package model

import (
	"fmt"

	"github.com/ifiokjr/schemafire/internal/docdb"
	"github.com/ifiokjr/schemafire/internal/schema"
)

// ServerUpdateTimestamp returns a copy of data with the system update
// timestamp set to the server-assigned timestamp sentinel.
func ServerUpdateTimestamp(data map[string]any) map[string]any {
	out := make(map[string]any, len(data)+1)
	for k, v := range data {
		out[k] = v
	}
	out[schema.FieldUpdatedAt] = docdb.ServerTimestamp
	return out
}

// mirrorRule returns the active mirror rule, if the schema declares one, the
// run configuration enables mirroring, and the model has a resolved id.
func (r *runner) mirrorRule(st txState) (*schema.MirrorRule, bool) {
	rule := r.model.schema.Mirror
	if rule == nil || !r.cfg.Mirror || st.ref.ID == "" {
		return nil, false
	}
	return rule, true
}

// mirrorRef resolves the mirror document: keyed by the designated id field
// when the rule names one, by the model's own id otherwise. A missing id is
// logged and reported as not resolvable; the primary write still proceeds.
func (r *runner) mirrorRef(st txState, rule *schema.MirrorRule) (docdb.DocRef, bool) {
	id := st.ref.ID
	if rule.IDField != "" {
		id, _ = st.rawData[rule.IDField].(string)
	}
	if id == "" {
		r.model.logger.Warn("mirror skipped: no mirror document id",
			"collection", r.model.schema.Collection,
			"doc", st.ref.ID,
			"id_field", rule.IDField)
		return docdb.DocRef{}, false
	}
	return docdb.CollectionRef{Name: rule.Collection}.Doc(id), true
}

// mirrorWrite performs the create/update mirror side effect: the outgoing
// payload filtered down to the mirror's selected fields, merged into the
// mirror document under the rule's key. An empty filtered payload is logged
// and skipped so a stray empty merge never wipes mirror fields.
func (r *runner) mirrorWrite(tx docdb.Transaction, st txState, updates map[string]any) error {
	rule, ok := r.mirrorRule(st)
	if !ok {
		return nil
	}
	ref, ok := r.mirrorRef(st, rule)
	if !ok {
		return nil
	}

	filtered := make(map[string]any)
	for _, name := range rule.Fields {
		if v, ok := updates[name]; ok {
			filtered[name] = v
		}
	}
	if len(filtered) == 0 {
		r.model.logger.Debug("mirror skipped: no mirrored fields in payload",
			"collection", r.model.schema.Collection,
			"mirror", rule.Collection)
		return nil
	}

	payload := ServerUpdateTimestamp(docdb.ExpandPath(rule.Key, filtered))
	if err := tx.Set(ref, payload, docdb.SetOptions{Merge: true}); err != nil {
		return fmt.Errorf("mirror write %s: %w", ref.Path(), err)
	}
	return nil
}

// mirrorDelete merges a field-delete marker into the mirror document under
// the rule's key, stamped with a server-side update timestamp. Only the
// configured key is touched; the mirror document itself stays.
func (r *runner) mirrorDelete(tx docdb.Transaction, st txState) error {
	rule, ok := r.mirrorRule(st)
	if !ok {
		return nil
	}
	ref, ok := r.mirrorRef(st, rule)
	if !ok {
		return nil
	}

	payload := ServerUpdateTimestamp(docdb.ExpandPath(rule.Key, docdb.FieldDelete))
	if err := tx.Set(ref, payload, docdb.SetOptions{Merge: true}); err != nil {
		return fmt.Errorf("mirror delete %s: %w", ref.Path(), err)
	}
	return nil
}
