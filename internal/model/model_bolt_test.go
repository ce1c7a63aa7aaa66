package model

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ifiokjr/schemafire/internal/docdb"
	"github.com/ifiokjr/schemafire/internal/docdb/boltdb"
	"github.com/ifiokjr/schemafire/internal/schema"
)

func newBoltModel(t *testing.T) *Model {
	t.Helper()
	store, err := boltdb.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	m, err := New(mirroredSchema(), store, WithID("u1"))
	require.NoError(t, err)
	return m
}

func TestModel_BoltLifecycle(t *testing.T) {
	ctx := context.Background()
	m := newBoltModel(t)

	require.NoError(t, m.Create(map[string]any{"name": "alice", "email": "a@x.io"}, true))
	require.NoError(t, m.Run(ctx, &RunOverride{ForceGet: schema.Bool(true)}))
	assert.Equal(t, StatusForceCreated, m.LastRunStatus())
	assert.True(t, m.Exists())

	// the refresh read pulled server-resolved timestamps into the view
	createdAt, ok := m.Get("createdAt")
	require.True(t, ok)
	assert.NotZero(t, createdAt)

	require.NoError(t, m.Update(map[string]any{"name": "carol"}))
	require.NoError(t, m.Run(ctx, nil))
	assert.Equal(t, StatusUpdated, m.LastRunStatus())

	// re-read through a second model bound to the same document
	other, err := New(mirroredSchema(), m.db, WithQuery(docdb.Where("name", docdb.OpEqual, "carol")))
	require.NoError(t, err)
	require.NoError(t, other.Run(ctx, &RunOverride{ForceGet: schema.Bool(true)}))
	assert.Equal(t, "u1", other.ID())
	v, _ := other.Get("email")
	assert.Equal(t, "a@x.io", v)

	require.NoError(t, m.Delete())
	require.NoError(t, m.Run(ctx, nil))
	assert.Equal(t, StatusDeleted, m.LastRunStatus())
	assert.False(t, m.Exists())
}
