package schema

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ifiokjr/schemafire/internal/docdb"
)

func userSchema() *Schema {
	return &Schema{
		Collection: "users",
		Fields: []Field{
			{Name: "name", Type: String(), Required: true},
			{Name: "age", Type: Int()},
			{Name: "joined", Type: Time()},
			{Name: "home", Type: Geo()},
		},
		Version:  2,
		Defaults: map[string]any{"name": "", "age": 0},
	}
}

func TestSchema_Keys(t *testing.T) {
	s := userSchema()
	assert.Equal(t, []string{"name", "age", "joined", "home"}, s.Keys())
}

func TestSchema_Validate(t *testing.T) {
	require.NoError(t, userSchema().Validate())

	tests := []struct {
		name   string
		mutate func(*Schema)
	}{
		{"no collection", func(s *Schema) { s.Collection = "" }},
		{"no fields", func(s *Schema) { s.Fields = nil }},
		{"reserved field", func(s *Schema) {
			s.Fields = append(s.Fields, Field{Name: FieldCreatedAt, Type: Time()})
		}},
		{"duplicate field", func(s *Schema) {
			s.Fields = append(s.Fields, Field{Name: "name", Type: String()})
		}},
		{"default for unknown field", func(s *Schema) { s.Defaults["ghost"] = 1 }},
		{"mirror of unknown field", func(s *Schema) {
			s.Mirror = &MirrorRule{Collection: "m", Key: "k", Fields: []string{"ghost"}}
		}},
		{"mirror id field unknown", func(s *Schema) {
			s.Mirror = &MirrorRule{Collection: "m", Key: "k", IDField: "ghost", Fields: []string{"name"}}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := userSchema()
			tt.mutate(s)
			assert.Error(t, s.Validate())
		})
	}
}

func TestSchema_HasMirror(t *testing.T) {
	s := userSchema()
	assert.False(t, s.HasMirror())
	s.Mirror = &MirrorRule{Collection: "m", Key: "k", Fields: []string{"name"}}
	assert.True(t, s.HasMirror())
}

func TestCodec_Decode(t *testing.T) {
	codec := userSchema().Codec()

	assert.Nil(t, codec.Decode(map[string]any{"name": "alice", "age": 30}))

	// missing required field
	err := codec.Decode(map[string]any{"age": 30})
	require.NotNil(t, err)
	assert.Equal(t, "name", err.Issues[0].Field)

	// wrong type
	err = codec.Decode(map[string]any{"name": 42})
	require.NotNil(t, err)

	// undeclared field
	err = codec.Decode(map[string]any{"name": "alice", "ghost": 1})
	require.NotNil(t, err)

	// base fields are skipped
	assert.Nil(t, codec.Decode(map[string]any{
		"name":             "alice",
		FieldSchemaVersion: 2,
		FieldUpdatedAt:     time.Now(),
	}))
}

func TestCodec_DecodeSentinels(t *testing.T) {
	codec := userSchema().Codec()

	// server timestamp is a valid timestamp value
	assert.Nil(t, codec.Decode(map[string]any{"name": "a", "joined": docdb.ServerTimestamp}))

	// deleting an optional field is fine, deleting a required one is not
	assert.Nil(t, codec.Decode(map[string]any{"name": "a", "age": docdb.FieldDelete}))
	err := codec.Decode(map[string]any{"name": docdb.FieldDelete})
	require.NotNil(t, err)
}

func TestCodec_Pick(t *testing.T) {
	codec := userSchema().Codec()

	// narrowed codec does not require fields outside the picked set
	narrowed := codec.Pick([]string{"age"})
	assert.Nil(t, narrowed.Decode(map[string]any{"age": 31}))

	// but still checks types within it
	err := narrowed.Decode(map[string]any{"age": "old"})
	require.NotNil(t, err)

	// and the full codec would have failed the same data
	require.NotNil(t, codec.Decode(map[string]any{"age": 31}))
}

func TestRunConfig_Merge(t *testing.T) {
	base := RunConfig{MaxAttempts: 5, Mirror: true, AutoValidate: true}

	assert.Equal(t, base, base.Merge(nil))

	merged := base.Merge(&RunOverride{MaxAttempts: 2, ForceGet: Bool(true)})
	assert.Equal(t, RunConfig{MaxAttempts: 2, ForceGet: true, Mirror: true, AutoValidate: true}, merged)

	// a supplied false disables options the schema enables
	disabled := base.Merge(&RunOverride{Mirror: Bool(false), AutoValidate: Bool(false)})
	assert.Equal(t, RunConfig{MaxAttempts: 5}, disabled)

	// nil fields keep the schema values
	assert.Equal(t, base, base.Merge(&RunOverride{}))
}

func TestMirrorRule_Validate(t *testing.T) {
	rule := &MirrorRule{Collection: "m", Key: "users", Fields: []string{"name"}}
	require.NoError(t, rule.Validate())

	assert.Error(t, (&MirrorRule{Key: "k", Fields: []string{"a"}}).Validate())
	assert.Error(t, (&MirrorRule{Collection: "m", Fields: []string{"a"}}).Validate())
	assert.Error(t, (&MirrorRule{Collection: "m", Key: "k"}).Validate())
}
