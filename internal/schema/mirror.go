package schema

import "fmt"

// MirrorRule declares a secondary denormalized document kept in sync with a
// subset of a primary document's fields. The mirror document lives in
// Collection and receives the selected fields merged under Key.
type MirrorRule struct {
	// Collection is the mirror target collection.
	Collection string
	// Key is the field the mirrored payload is written under. Dot-paths
	// address nested maps.
	Key string
	// IDField names the local field whose value supplies the mirror
	// document's id. Empty means the model's own id is used.
	IDField string
	// Fields selects which source fields populate the mirror payload.
	Fields []string
}

// Validate checks the rule for internal consistency.
func (r *MirrorRule) Validate() error {
	if r.Collection == "" {
		return fmt.Errorf("mirror rule has no target collection")
	}
	if r.Key == "" {
		return fmt.Errorf("mirror rule has no target key")
	}
	if len(r.Fields) == 0 {
		return fmt.Errorf("mirror rule selects no fields")
	}
	return nil
}
