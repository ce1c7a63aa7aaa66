package sqldb

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ifiokjr/schemafire/internal/docdb"
)

// newTestStore creates a SQLite store in a temp directory for testing.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func write(t *testing.T, st *Store, ref docdb.DocRef, data map[string]any, merge bool) {
	t.Helper()
	err := st.RunTransaction(context.Background(), func(tx docdb.Transaction) error {
		return tx.Set(ref, data, docdb.SetOptions{Merge: merge})
	}, docdb.TxOptions{})
	require.NoError(t, err)
}

func read(t *testing.T, st *Store, ref docdb.DocRef) docdb.Snapshot {
	t.Helper()
	var snap docdb.Snapshot
	err := st.RunTransaction(context.Background(), func(tx docdb.Transaction) error {
		var err error
		snap, err = tx.Get(ref)
		return err
	}, docdb.TxOptions{})
	require.NoError(t, err)
	return snap
}

func TestStore_SetGetRoundTrip(t *testing.T) {
	st := newTestStore(t)
	ref := st.Collection("users").Doc("u1")
	when := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	write(t, st, ref, map[string]any{
		"name": "alice",
		"born": when,
		"home": docdb.GeoPoint{Latitude: 59.3, Longitude: 18.1},
	}, false)

	snap := read(t, st, ref)
	require.True(t, snap.Exists)
	assert.Equal(t, "alice", snap.Data["name"])
	assert.Equal(t, when, snap.Data["born"])
	assert.Equal(t, docdb.GeoPoint{Latitude: 59.3, Longitude: 18.1}, snap.Data["home"])
}

func TestStore_MergeAndSentinels(t *testing.T) {
	st := newTestStore(t)
	ref := st.Collection("users").Doc("u1")

	write(t, st, ref, map[string]any{"a": "one", "b": "two"}, false)
	write(t, st, ref, map[string]any{
		"b":  docdb.FieldDelete,
		"at": docdb.ServerTimestamp,
	}, true)

	snap := read(t, st, ref)
	assert.Equal(t, "one", snap.Data["a"])
	assert.NotContains(t, snap.Data, "b")
	assert.IsType(t, time.Time{}, snap.Data["at"])
}

func TestStore_UpdateMissing(t *testing.T) {
	st := newTestStore(t)
	err := st.RunTransaction(context.Background(), func(tx docdb.Transaction) error {
		return tx.Update(st.Collection("users").Doc("ghost"), map[string]any{"a": 1})
	}, docdb.TxOptions{})
	assert.ErrorIs(t, err, docdb.ErrNotFound)
}

func TestStore_DeleteAndRollback(t *testing.T) {
	st := newTestStore(t)
	ref := st.Collection("users").Doc("u1")
	write(t, st, ref, map[string]any{"a": 1}, false)

	// Rolled-back attempt leaves the document alone.
	boom := errors.New("boom")
	err := st.RunTransaction(context.Background(), func(tx docdb.Transaction) error {
		if err := tx.Delete(ref); err != nil {
			return err
		}
		return boom
	}, docdb.TxOptions{})
	assert.ErrorIs(t, err, boom)
	assert.True(t, read(t, st, ref).Exists)

	err = st.RunTransaction(context.Background(), func(tx docdb.Transaction) error {
		return tx.Delete(ref)
	}, docdb.TxOptions{})
	require.NoError(t, err)
	assert.False(t, read(t, st, ref).Exists)
}

func TestStore_QueryFirstMatchInKeyOrder(t *testing.T) {
	st := newTestStore(t)
	users := st.Collection("users")
	write(t, st, users.Doc("a"), map[string]any{"age": 20}, false)
	write(t, st, users.Doc("b"), map[string]any{"age": 35}, false)

	var snap docdb.Snapshot
	var found bool
	err := st.RunTransaction(context.Background(), func(tx docdb.Transaction) error {
		var err error
		snap, found, err = tx.Query(users, []docdb.Clause{docdb.Where("age", docdb.OpGreater, 30)})
		return err
	}, docdb.TxOptions{})

	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "b", snap.Ref.ID)
}

func TestStore_Collections(t *testing.T) {
	st := newTestStore(t)
	write(t, st, st.Collection("users").Doc("u1"), map[string]any{"a": 1}, false)
	write(t, st, st.Collection("groups").Doc("g1"), map[string]any{"a": 1}, false)

	names, err := st.Collections()
	require.NoError(t, err)
	assert.Equal(t, []string{"groups", "users"}, names)
}

func TestDSN_ImmediateTransactions(t *testing.T) {
	// write locks must be taken at BEGIN so contention surfaces as
	// SQLITE_BUSY instead of a late deferred upgrade failure
	assert.Contains(t, dsn("x.db"), "_txlock=immediate")
	assert.Contains(t, dsn("x.db"), "journal_mode(WAL)")
	assert.Contains(t, dsn("x.db"), "busy_timeout")
}

func TestIsBusy(t *testing.T) {
	assert.True(t, isBusy(errors.New("database is locked (5) (SQLITE_BUSY)")))
	assert.False(t, isBusy(errors.New("syntax error")))
	assert.False(t, isBusy(nil))
}
