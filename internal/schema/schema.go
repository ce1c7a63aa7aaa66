// Package schema describes the shape of a collection: its typed fields,
// defaults, version, default run options, and an optional mirror rule. The
// model layer consumes schemas read-only.
package schema

import (
	"fmt"
	"slices"
)

// Base fields are system-managed and protected from direct deletion.
const (
	FieldSchemaVersion = "schemaVersion"
	FieldCreatedAt     = "createdAt"
	FieldUpdatedAt     = "updatedAt"
)

var baseFields = []string{FieldSchemaVersion, FieldCreatedAt, FieldUpdatedAt}

// BaseFieldNames returns the names of the system-managed base fields.
func BaseFieldNames() []string {
	return slices.Clone(baseFields)
}

// IsBaseField reports whether name is a system-managed base field.
func IsBaseField(name string) bool {
	return slices.Contains(baseFields, name)
}

// RunConfig holds the options for a single model run. A schema carries the
// defaults; callers may override them per run.
type RunConfig struct {
	// MaxAttempts caps transaction retries on write conflicts.
	MaxAttempts int
	// ForceGet issues a read even when no queued action requires one, and
	// refreshes local state after a create.
	ForceGet bool
	// Mirror enables the mirror side-effect write.
	Mirror bool
	// AutoValidate runs the codec before create/update writes.
	AutoValidate bool
}

// Bool returns a pointer to v, for RunOverride fields.
func Bool(v bool) *bool { return &v }

// RunOverride selects per-run deviations from a schema's run options. Nil
// boolean fields and a zero MaxAttempts keep the schema value, so a caller
// can both enable and disable options the schema declares.
type RunOverride struct {
	MaxAttempts  int
	ForceGet     *bool
	Mirror       *bool
	AutoValidate *bool
}

// Merge overlays the supplied override values onto c and returns the result.
func (c RunConfig) Merge(override *RunOverride) RunConfig {
	if override == nil {
		return c
	}
	out := c
	if override.MaxAttempts > 0 {
		out.MaxAttempts = override.MaxAttempts
	}
	if override.ForceGet != nil {
		out.ForceGet = *override.ForceGet
	}
	if override.Mirror != nil {
		out.Mirror = *override.Mirror
	}
	if override.AutoValidate != nil {
		out.AutoValidate = *override.AutoValidate
	}
	return out
}

// DefaultRunConfig is used when a schema declares no run options.
var DefaultRunConfig = RunConfig{
	MaxAttempts:  5,
	Mirror:       true,
	AutoValidate: true,
}

// Schema describes one collection.
type Schema struct {
	// Collection is the collection name documents of this schema live in.
	Collection string
	// Fields is the ordered field list.
	Fields []Field
	// Version is stamped into every document as schemaVersion.
	Version int
	// Defaults provides mock field values shown before a model's first
	// successful run.
	Defaults map[string]any
	// Config holds default run options, merged under caller overrides.
	Config RunConfig
	// Mirror, when set, declares the mirror side-effect for every write.
	Mirror *MirrorRule
}

// Keys returns the schema's field names in declaration order.
func (s *Schema) Keys() []string {
	keys := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		keys[i] = f.Name
	}
	return keys
}

// Field returns the named field, if declared.
func (s *Schema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// HasMirror reports whether the schema declares a mirror rule.
func (s *Schema) HasMirror() bool {
	return s.Mirror != nil
}

// Codec returns the validation codec over all declared fields.
func (s *Schema) Codec() Codec {
	return Codec{fields: s.Fields}
}

// DefaultData returns a copy of the schema's default field values.
func (s *Schema) DefaultData() map[string]any {
	out := make(map[string]any, len(s.Defaults))
	for k, v := range s.Defaults {
		out[k] = v
	}
	return out
}

// RunOptions returns the schema's run options. A schema that declares none
// gets the package defaults.
func (s *Schema) RunOptions() RunConfig {
	cfg := s.Config
	if cfg == (RunConfig{}) {
		return DefaultRunConfig
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultRunConfig.MaxAttempts
	}
	return cfg
}

// Validate checks the schema for internal consistency.
func (s *Schema) Validate() error {
	if s.Collection == "" {
		return fmt.Errorf("schema has no collection name")
	}
	if len(s.Fields) == 0 {
		return fmt.Errorf("schema %q has no fields", s.Collection)
	}
	seen := make(map[string]bool, len(s.Fields))
	for _, f := range s.Fields {
		if f.Name == "" {
			return fmt.Errorf("schema %q has a field without a name", s.Collection)
		}
		if IsBaseField(f.Name) {
			return fmt.Errorf("schema %q declares reserved field %q", s.Collection, f.Name)
		}
		if seen[f.Name] {
			return fmt.Errorf("schema %q declares field %q twice", s.Collection, f.Name)
		}
		if f.Type == nil {
			return fmt.Errorf("schema %q field %q has no type", s.Collection, f.Name)
		}
		seen[f.Name] = true
	}
	for name := range s.Defaults {
		if !seen[name] {
			return fmt.Errorf("schema %q has a default for undeclared field %q", s.Collection, name)
		}
	}
	if s.Mirror != nil {
		if err := s.Mirror.Validate(); err != nil {
			return fmt.Errorf("schema %q: %w", s.Collection, err)
		}
		for _, name := range s.Mirror.Fields {
			if !seen[name] {
				return fmt.Errorf("schema %q mirrors undeclared field %q", s.Collection, name)
			}
		}
		if s.Mirror.IDField != "" && !seen[s.Mirror.IDField] {
			return fmt.Errorf("schema %q mirror id field %q is not declared", s.Collection, s.Mirror.IDField)
		}
	}
	return nil
}
