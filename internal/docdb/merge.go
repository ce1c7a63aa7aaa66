package docdb

import (
	"sort"
	"strings"
	"time"
)

// Merge deep-merges patch into base and returns a new map; neither input is
// mutated. FieldDelete sentinels remove the matching key, ServerTimestamp
// sentinels resolve to now. Nested maps merge recursively; any other value
// replaces the existing one.
func Merge(base, patch map[string]any, now time.Time) map[string]any {
	out := make(map[string]any, len(base)+len(patch))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range patch {
		switch val := v.(type) {
		case Sentinel:
			switch val {
			case FieldDelete:
				delete(out, k)
			case ServerTimestamp:
				out[k] = now
			}
		case map[string]any:
			if existing, ok := out[k].(map[string]any); ok {
				out[k] = Merge(existing, val, now)
			} else {
				out[k] = Resolve(val, now)
			}
		default:
			out[k] = v
		}
	}
	return out
}

// Resolve returns a copy of data with ServerTimestamp sentinels replaced by
// now and FieldDelete sentinels dropped. Used for replace-style writes where
// there is no existing document to merge against.
func Resolve(data map[string]any, now time.Time) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		switch val := v.(type) {
		case Sentinel:
			switch val {
			case FieldDelete:
				// nothing to remove on a fresh write
			case ServerTimestamp:
				out[k] = now
			}
		case map[string]any:
			out[k] = Resolve(val, now)
		default:
			out[k] = v
		}
	}
	return out
}

// ExpandPath turns a dot-path key into nested maps: ExpandPath("a.b", v)
// returns {"a": {"b": v}}. A key without dots yields a single-entry map.
func ExpandPath(key string, v any) map[string]any {
	parts := strings.Split(key, ".")
	out := map[string]any{parts[len(parts)-1]: v}
	for i := len(parts) - 2; i >= 0; i-- {
		out = map[string]any{parts[i]: out}
	}
	return out
}

// LookupPath resolves a dot-path against nested maps.
func LookupPath(data map[string]any, path string) (any, bool) {
	parts := strings.Split(path, ".")
	var current any = data
	for _, part := range parts {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// MatchClauses reports whether a document satisfies every clause.
func MatchClauses(data map[string]any, clauses []Clause) bool {
	for _, c := range clauses {
		if !matchClause(data, c) {
			return false
		}
	}
	return true
}

func matchClause(data map[string]any, c Clause) bool {
	got, ok := LookupPath(data, c.Field)
	if !ok {
		return false
	}

	switch c.Op {
	case OpEqual:
		return valuesEqual(got, c.Value)
	case OpLess, OpLessOrEqual, OpGreater, OpGreaterOrEqual:
		cmp, ok := compareValues(got, c.Value)
		if !ok {
			return false
		}
		switch c.Op {
		case OpLess:
			return cmp < 0
		case OpLessOrEqual:
			return cmp <= 0
		case OpGreater:
			return cmp > 0
		default:
			return cmp >= 0
		}
	case OpIn:
		list, ok := c.Value.([]any)
		if !ok {
			return false
		}
		for _, candidate := range list {
			if valuesEqual(got, candidate) {
				return true
			}
		}
		return false
	case OpArrayContains:
		list, ok := got.([]any)
		if !ok {
			return false
		}
		for _, item := range list {
			if valuesEqual(item, c.Value) {
				return true
			}
		}
		return false
	}
	return false
}

func valuesEqual(a, b any) bool {
	if cmp, ok := compareValues(a, b); ok {
		return cmp == 0
	}
	return a == b
}

// compareValues orders two values when they share a comparable kind.
// Numbers compare as float64 so JSON round-trips do not change results.
func compareValues(a, b any) (int, bool) {
	if af, ok := toFloat(a); ok {
		bf, ok := toFloat(b)
		if !ok {
			return 0, false
		}
		switch {
		case af < bf:
			return -1, true
		case af > bf:
			return 1, true
		default:
			return 0, true
		}
	}
	if as, ok := a.(string); ok {
		bs, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(as, bs), true
	}
	if at, ok := a.(time.Time); ok {
		bt, ok := b.(time.Time)
		if !ok {
			return 0, false
		}
		switch {
		case at.Before(bt):
			return -1, true
		case at.After(bt):
			return 1, true
		default:
			return 0, true
		}
	}
	return 0, false
}

// SortedKeys returns the keys of m in lexical order. Backends use it to make
// query iteration deterministic.
func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
