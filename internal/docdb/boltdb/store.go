// Package boltdb implements the docdb contract on an embedded bbolt database.
// Each collection maps to a bucket; documents are stored as JSON envelopes
// with their field data in the tagged value shape.
package boltdb

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/ifiokjr/schemafire/internal/docdb"
)

// Store is a bbolt-backed document database.
type Store struct {
	db *bolt.DB
}

// document is the stored envelope for a single document.
type document struct {
	Data       map[string]any `json:"data"`
	UpdateTime time.Time      `json:"update_time"`
}

// Open opens or creates a bbolt database at the given path.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Collection implements docdb.Database.
func (s *Store) Collection(name string) docdb.CollectionRef {
	return docdb.CollectionRef{Name: name}
}

// Collections returns the names of all collections with at least one document.
func (s *Store) Collections() ([]string, error) {
	var names []string
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.ForEach(func(name []byte, b *bolt.Bucket) error {
			if b.Stats().KeyN > 0 {
				names = append(names, string(name))
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	return names, nil
}

// RunTransaction implements docdb.Database. bbolt serializes writers, so
// attempts never conflict with each other, but the shared retry loop keeps
// the contract uniform across backends.
func (s *Store) RunTransaction(ctx context.Context, fn func(tx docdb.Transaction) error, opts docdb.TxOptions) error {
	return docdb.RunWithRetry(ctx, opts, func() error {
		return s.db.Update(func(btx *bolt.Tx) error {
			return fn(&txn{btx: btx, now: time.Now().UTC()})
		})
	})
}

// txn adapts a live bolt transaction to docdb.Transaction. A returned error
// from the attempt function rolls the whole bolt transaction back, which is
// what gives the model layer its atomicity.
type txn struct {
	btx *bolt.Tx
	now time.Time
}

func (t *txn) Get(ref docdb.DocRef) (docdb.Snapshot, error) {
	b := t.btx.Bucket([]byte(ref.Collection))
	if b == nil {
		return docdb.Snapshot{Ref: ref}, nil
	}
	raw := b.Get([]byte(ref.ID))
	if raw == nil {
		return docdb.Snapshot{Ref: ref}, nil
	}
	return decodeDocument(ref, raw)
}

func (t *txn) Set(ref docdb.DocRef, data map[string]any, opts docdb.SetOptions) error {
	b, err := t.btx.CreateBucketIfNotExists([]byte(ref.Collection))
	if err != nil {
		return fmt.Errorf("create collection bucket: %w", err)
	}

	var next map[string]any
	if opts.Merge {
		existing := map[string]any{}
		if raw := b.Get([]byte(ref.ID)); raw != nil {
			snap, err := decodeDocument(ref, raw)
			if err != nil {
				return err
			}
			existing = snap.Data
		}
		next = docdb.Merge(existing, data, t.now)
	} else {
		next = docdb.Resolve(data, t.now)
	}

	return t.put(b, ref, next)
}

func (t *txn) Update(ref docdb.DocRef, data map[string]any) error {
	b := t.btx.Bucket([]byte(ref.Collection))
	if b == nil || b.Get([]byte(ref.ID)) == nil {
		return docdb.ErrNotFound
	}
	snap, err := decodeDocument(ref, b.Get([]byte(ref.ID)))
	if err != nil {
		return err
	}
	return t.put(b, ref, docdb.Merge(snap.Data, data, t.now))
}

func (t *txn) Delete(ref docdb.DocRef) error {
	b := t.btx.Bucket([]byte(ref.Collection))
	if b == nil {
		return nil
	}
	return b.Delete([]byte(ref.ID))
}

func (t *txn) Query(coll docdb.CollectionRef, clauses []docdb.Clause) (docdb.Snapshot, bool, error) {
	b := t.btx.Bucket([]byte(coll.Name))
	if b == nil {
		return docdb.Snapshot{}, false, nil
	}

	c := b.Cursor()
	for k, v := c.First(); k != nil; k, v = c.Next() {
		ref := coll.Doc(string(k))
		snap, err := decodeDocument(ref, v)
		if err != nil {
			return docdb.Snapshot{}, false, err
		}
		if docdb.MatchClauses(snap.Data, clauses) {
			return snap, true, nil
		}
	}
	return docdb.Snapshot{}, false, nil
}

func (t *txn) put(b *bolt.Bucket, ref docdb.DocRef, data map[string]any) error {
	raw, err := json.Marshal(document{Data: docdb.EncodeData(data), UpdateTime: t.now})
	if err != nil {
		return fmt.Errorf("marshal document %s: %w", ref.Path(), err)
	}
	if err := b.Put([]byte(ref.ID), raw); err != nil {
		return fmt.Errorf("store document %s: %w", ref.Path(), err)
	}
	return nil
}

func decodeDocument(ref docdb.DocRef, raw []byte) (docdb.Snapshot, error) {
	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return docdb.Snapshot{}, fmt.Errorf("unmarshal document %s: %w", ref.Path(), err)
	}
	return docdb.Snapshot{
		Ref:        ref,
		Exists:     true,
		Data:       docdb.DecodeData(doc.Data),
		UpdateTime: doc.UpdateTime,
	}, nil
}

var _ docdb.Database = (*Store)(nil)
