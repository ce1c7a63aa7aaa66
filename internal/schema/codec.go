package schema

import (
	"fmt"
	"slices"
	"strings"

	"github.com/ifiokjr/schemafire/internal/docdb"
)

// Issue is one field-level validation failure.
type Issue struct {
	Field   string
	Message string
}

// ValidationError reports why a document failed to decode. It is a domain
// failure, distinct from programming-contract violations.
type ValidationError struct {
	Issues []Issue
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if len(e.Issues) == 0 {
		return "validation failed"
	}
	parts := make([]string, len(e.Issues))
	for i, issue := range e.Issues {
		parts[i] = fmt.Sprintf("%s: %s", issue.Field, issue.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Codec validates field maps against a set of declared fields.
type Codec struct {
	fields []Field
}

// Pick returns a codec narrowed to the named fields, so partial updates are
// not blocked by unrelated required fields. Unknown names are ignored.
func (c Codec) Pick(keys []string) Codec {
	narrowed := make([]Field, 0, len(keys))
	for _, f := range c.fields {
		if slices.Contains(keys, f.Name) {
			narrowed = append(narrowed, f)
		}
	}
	return Codec{fields: narrowed}
}

// Decode validates data against the codec's fields. It returns nil on
// success. Base fields and field-delete sentinels are skipped; fields not
// declared by the codec are rejected.
func (c Codec) Decode(data map[string]any) *ValidationError {
	var issues []Issue

	for _, f := range c.fields {
		v, ok := data[f.Name]
		if !ok || v == nil {
			if f.Required {
				issues = append(issues, Issue{Field: f.Name, Message: "required field is missing"})
			}
			continue
		}
		if s, ok := v.(docdb.Sentinel); ok && s == docdb.FieldDelete {
			if f.Required {
				issues = append(issues, Issue{Field: f.Name, Message: "required field cannot be deleted"})
			}
			continue
		}
		if err := f.Type.Validate(v); err != nil {
			issues = append(issues, Issue{Field: f.Name, Message: err.Error()})
		}
	}

	declared := make(map[string]bool, len(c.fields))
	for _, f := range c.fields {
		declared[f.Name] = true
	}
	for name := range data {
		if !declared[name] && !IsBaseField(name) {
			issues = append(issues, Issue{Field: name, Message: "field is not declared by the schema"})
		}
	}

	if len(issues) == 0 {
		return nil
	}
	return &ValidationError{Issues: issues}
}
