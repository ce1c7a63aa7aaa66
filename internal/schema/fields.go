package schema

import (
	"fmt"
	"math"
	"time"

	"github.com/ifiokjr/schemafire/internal/docdb"
)

// Field is one declared field of a schema.
type Field struct {
	Name     string
	Type     FieldType
	Required bool
}

// FieldType validates values of one kind.
type FieldType interface {
	Kind() string
	Validate(v any) error
}

type kindType struct {
	kind  string
	check func(v any) error
}

func (t kindType) Kind() string { return t.kind }

func (t kindType) Validate(v any) error { return t.check(v) }

// String accepts string values.
func String() FieldType {
	return kindType{kind: "string", check: func(v any) error {
		if _, ok := v.(string); !ok {
			return fmt.Errorf("expected string, got %T", v)
		}
		return nil
	}}
}

// Int accepts integer values. Whole float64 values are accepted too since
// JSON decoding turns all numbers into float64.
func Int() FieldType {
	return kindType{kind: "int", check: func(v any) error {
		switch n := v.(type) {
		case int, int32, int64:
			return nil
		case float64:
			if n == math.Trunc(n) {
				return nil
			}
			return fmt.Errorf("expected integer, got fractional number %v", n)
		default:
			return fmt.Errorf("expected integer, got %T", v)
		}
	}}
}

// Float accepts numeric values.
func Float() FieldType {
	return kindType{kind: "float", check: func(v any) error {
		switch v.(type) {
		case float64, float32, int, int32, int64:
			return nil
		default:
			return fmt.Errorf("expected number, got %T", v)
		}
	}}
}

// Boolean accepts boolean values.
func Boolean() FieldType {
	return kindType{kind: "bool", check: func(v any) error {
		if _, ok := v.(bool); !ok {
			return fmt.Errorf("expected bool, got %T", v)
		}
		return nil
	}}
}

// Time accepts time.Time values and the server-timestamp sentinel.
func Time() FieldType {
	return kindType{kind: "timestamp", check: func(v any) error {
		if _, ok := v.(time.Time); ok {
			return nil
		}
		if s, ok := v.(docdb.Sentinel); ok && s == docdb.ServerTimestamp {
			return nil
		}
		return fmt.Errorf("expected timestamp, got %T", v)
	}}
}

// Geo accepts docdb.GeoPoint values.
func Geo() FieldType {
	return kindType{kind: "geopoint", check: func(v any) error {
		if _, ok := v.(docdb.GeoPoint); !ok {
			return fmt.Errorf("expected geopoint, got %T", v)
		}
		return nil
	}}
}

// Ref accepts document references.
func Ref() FieldType {
	return kindType{kind: "doc-ref", check: func(v any) error {
		if _, ok := v.(docdb.DocRef); !ok {
			return fmt.Errorf("expected document reference, got %T", v)
		}
		return nil
	}}
}

// Map accepts nested field maps.
func Map() FieldType {
	return kindType{kind: "map", check: func(v any) error {
		if _, ok := v.(map[string]any); !ok {
			return fmt.Errorf("expected map, got %T", v)
		}
		return nil
	}}
}

// List accepts list values.
func List() FieldType {
	return kindType{kind: "list", check: func(v any) error {
		if _, ok := v.([]any); !ok {
			return fmt.Errorf("expected list, got %T", v)
		}
		return nil
	}}
}
