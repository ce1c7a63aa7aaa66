// Package sqldb implements the docdb contract on SQLite. Documents live in a
// single table keyed by (collection, id) with their field data stored as JSON
// in the tagged value shape. It uses the same encoding as the boltdb backend,
// so database files differ but document shapes do not.
package sqldb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ifiokjr/schemafire/internal/docdb"
)

// Store is a SQLite-backed document database.
type Store struct {
	db *sql.DB
}

// dsn builds the connection string: WAL for concurrent readers, a short busy
// timeout so contention surfaces as SQLITE_BUSY, and immediate transactions
// so write locks are taken at BEGIN rather than at the first write.
func dsn(path string) string {
	return path + "?_txlock=immediate&_pragma=journal_mode(WAL)&_pragma=busy_timeout(200)"
}

// Open opens or creates a SQLite database at the given path and ensures the
// documents table exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite supports one writer at a time
	db.SetMaxOpenConns(1)

	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		collection  TEXT NOT NULL,
		id          TEXT NOT NULL,
		data        TEXT NOT NULL,
		update_time TEXT NOT NULL,
		PRIMARY KEY (collection, id)
	);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Collection implements docdb.Database.
func (s *Store) Collection(name string) docdb.CollectionRef {
	return docdb.CollectionRef{Name: name}
}

// Collections returns the names of all collections with at least one document.
func (s *Store) Collections() ([]string, error) {
	rows, err := s.db.Query(`SELECT DISTINCT collection FROM documents ORDER BY collection`)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan collection name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// RunTransaction implements docdb.Database. A busy database maps to
// docdb.ErrConflict so the shared retry loop re-runs the attempt.
func (s *Store) RunTransaction(ctx context.Context, fn func(tx docdb.Transaction) error, opts docdb.TxOptions) error {
	return docdb.RunWithRetry(ctx, opts, func() error {
		stx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return conflictOr(err, "begin transaction")
		}

		t := &txn{ctx: ctx, stx: stx, now: time.Now().UTC()}
		if err := fn(t); err != nil {
			stx.Rollback()
			return err
		}
		if err := stx.Commit(); err != nil {
			return conflictOr(err, "commit transaction")
		}
		return nil
	})
}

// conflictOr maps SQLITE_BUSY to ErrConflict and wraps anything else.
func conflictOr(err error, op string) error {
	if isBusy(err) {
		return fmt.Errorf("%s: %w", op, docdb.ErrConflict)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

type txn struct {
	ctx context.Context
	stx *sql.Tx
	now time.Time
}

func (t *txn) Get(ref docdb.DocRef) (docdb.Snapshot, error) {
	var raw string
	var updated string
	row := t.stx.QueryRowContext(t.ctx,
		`SELECT data, update_time FROM documents WHERE collection = ? AND id = ?`,
		ref.Collection, ref.ID)
	if err := row.Scan(&raw, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return docdb.Snapshot{Ref: ref}, nil
		}
		return docdb.Snapshot{}, conflictOr(err, "read document")
	}
	return decodeRow(ref, raw, updated)
}

func (t *txn) Set(ref docdb.DocRef, data map[string]any, opts docdb.SetOptions) error {
	var next map[string]any
	if opts.Merge {
		snap, err := t.Get(ref)
		if err != nil {
			return err
		}
		next = docdb.Merge(snap.Data, data, t.now)
	} else {
		next = docdb.Resolve(data, t.now)
	}
	return t.put(ref, next)
}

func (t *txn) Update(ref docdb.DocRef, data map[string]any) error {
	snap, err := t.Get(ref)
	if err != nil {
		return err
	}
	if !snap.Exists {
		return docdb.ErrNotFound
	}
	return t.put(ref, docdb.Merge(snap.Data, data, t.now))
}

func (t *txn) Delete(ref docdb.DocRef) error {
	_, err := t.stx.ExecContext(t.ctx,
		`DELETE FROM documents WHERE collection = ? AND id = ?`,
		ref.Collection, ref.ID)
	if err != nil {
		return conflictOr(err, "delete document")
	}
	return nil
}

func (t *txn) Query(coll docdb.CollectionRef, clauses []docdb.Clause) (docdb.Snapshot, bool, error) {
	rows, err := t.stx.QueryContext(t.ctx,
		`SELECT id, data, update_time FROM documents WHERE collection = ? ORDER BY id`,
		coll.Name)
	if err != nil {
		return docdb.Snapshot{}, false, conflictOr(err, "query collection")
	}
	defer rows.Close()

	for rows.Next() {
		var id, raw, updated string
		if err := rows.Scan(&id, &raw, &updated); err != nil {
			return docdb.Snapshot{}, false, fmt.Errorf("scan document row: %w", err)
		}
		snap, err := decodeRow(coll.Doc(id), raw, updated)
		if err != nil {
			return docdb.Snapshot{}, false, err
		}
		if docdb.MatchClauses(snap.Data, clauses) {
			return snap, true, nil
		}
	}
	return docdb.Snapshot{}, false, rows.Err()
}

func (t *txn) put(ref docdb.DocRef, data map[string]any) error {
	raw, err := json.Marshal(docdb.EncodeData(data))
	if err != nil {
		return fmt.Errorf("marshal document %s: %w", ref.Path(), err)
	}
	_, err = t.stx.ExecContext(t.ctx, `
		INSERT INTO documents (collection, id, data, update_time)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (collection, id) DO UPDATE SET data = excluded.data, update_time = excluded.update_time`,
		ref.Collection, ref.ID, string(raw), t.now.Format(time.RFC3339Nano))
	if err != nil {
		return conflictOr(err, "store document")
	}
	return nil
}

func decodeRow(ref docdb.DocRef, raw, updated string) (docdb.Snapshot, error) {
	var data map[string]any
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return docdb.Snapshot{}, fmt.Errorf("unmarshal document %s: %w", ref.Path(), err)
	}
	updateTime, err := time.Parse(time.RFC3339Nano, updated)
	if err != nil {
		return docdb.Snapshot{}, fmt.Errorf("parse update time for %s: %w", ref.Path(), err)
	}
	return docdb.Snapshot{Ref: ref, Exists: true, Data: docdb.DecodeData(data), UpdateTime: updateTime}, nil
}

var _ docdb.Database = (*Store)(nil)
