package docdb

import (
	"fmt"
	"time"
)

// Snapshot is the result of reading a document. Data is nil when the
// document does not exist.
type Snapshot struct {
	Ref        DocRef
	Exists     bool
	Data       map[string]any
	UpdateTime time.Time
}

// Sentinel is a write-time placeholder value. Sentinels never reach storage;
// backends resolve them while applying a write.
type Sentinel uint8

const (
	// ServerTimestamp resolves to the commit time of the transaction.
	ServerTimestamp Sentinel = iota + 1

	// FieldDelete removes the field from the document on a merge write.
	FieldDelete
)

// String implements fmt.Stringer for diagnostics.
func (s Sentinel) String() string {
	switch s {
	case ServerTimestamp:
		return "ServerTimestamp"
	case FieldDelete:
		return "FieldDelete"
	default:
		return fmt.Sprintf("Sentinel(%d)", uint8(s))
	}
}

// GeoPoint is a latitude/longitude pair.
type GeoPoint struct {
	Latitude  float64
	Longitude float64
}

// Tagged type names used in the stored/JSON shape of special values.
const (
	typeTimestamp     = "timestamp"
	typeGeoPoint      = "geopoint"
	typeDocRef        = "doc-ref"
	typeCollectionRef = "collection-ref"
)

// EncodeData renders a field map into its plain JSON shape. Timestamps,
// geopoints, and references become tagged {"type": ..., "value": ...} maps;
// nested maps and lists are encoded recursively.
func EncodeData(data map[string]any) map[string]any {
	if data == nil {
		return nil
	}
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = EncodeValue(v)
	}
	return out
}

// EncodeValue encodes a single field value. See EncodeData.
func EncodeValue(v any) any {
	switch val := v.(type) {
	case time.Time:
		return map[string]any{"type": typeTimestamp, "value": val.UTC().Format(time.RFC3339Nano)}
	case GeoPoint:
		return map[string]any{
			"type":  typeGeoPoint,
			"value": map[string]any{"latitude": val.Latitude, "longitude": val.Longitude},
		}
	case DocRef:
		return map[string]any{"type": typeDocRef, "value": val.Path()}
	case CollectionRef:
		return map[string]any{"type": typeCollectionRef, "value": val.Name}
	case map[string]any:
		return EncodeData(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = EncodeValue(item)
		}
		return out
	default:
		return v
	}
}

// DecodeData restores typed values from their tagged JSON shape.
func DecodeData(data map[string]any) map[string]any {
	if data == nil {
		return nil
	}
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = DecodeValue(v)
	}
	return out
}

// DecodeValue is the inverse of EncodeValue. Maps that do not carry a
// recognized tag are decoded recursively as plain maps.
func DecodeValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		if typed, ok := decodeTagged(val); ok {
			return typed
		}
		return DecodeData(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = DecodeValue(item)
		}
		return out
	default:
		return v
	}
}

func decodeTagged(m map[string]any) (any, bool) {
	if len(m) != 2 {
		return nil, false
	}
	typ, ok := m["type"].(string)
	if !ok {
		return nil, false
	}
	value, ok := m["value"]
	if !ok {
		return nil, false
	}

	switch typ {
	case typeTimestamp:
		s, ok := value.(string)
		if !ok {
			return nil, false
		}
		ts, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return nil, false
		}
		return ts, true
	case typeGeoPoint:
		point, ok := value.(map[string]any)
		if !ok {
			return nil, false
		}
		lat, latOK := toFloat(point["latitude"])
		lng, lngOK := toFloat(point["longitude"])
		if !latOK || !lngOK {
			return nil, false
		}
		return GeoPoint{Latitude: lat, Longitude: lng}, true
	case typeDocRef:
		s, ok := value.(string)
		if !ok {
			return nil, false
		}
		ref, err := ParseDocPath(s)
		if err != nil {
			return nil, false
		}
		return ref, true
	case typeCollectionRef:
		s, ok := value.(string)
		if !ok {
			return nil, false
		}
		return CollectionRef{Name: s}, true
	}
	return nil, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	}
	return 0, false
}
