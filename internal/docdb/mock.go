package docdb

import (
	"context"
	"time"
)

// MockOpKind identifies a recorded transaction operation.
type MockOpKind string

const (
	MockOpGet    MockOpKind = "get"
	MockOpSet    MockOpKind = "set"
	MockOpUpdate MockOpKind = "update"
	MockOpDelete MockOpKind = "delete"
	MockOpQuery  MockOpKind = "query"
)

// MockOp is one operation issued against a MockDatabase transaction.
type MockOp struct {
	Kind    MockOpKind
	Ref     DocRef
	Coll    CollectionRef
	Data    map[string]any
	Merge   bool
	Clauses []Clause
}

// MockDatabase is an in-memory Database for testing. It records every
// transaction operation in order and can inject conflicts and errors.
type MockDatabase struct {
	// Docs stores committed documents keyed by "collection/id".
	Docs map[string]map[string]any
	// Ops is the sequence of operations across all attempts.
	Ops []MockOp
	// Attempts counts transaction attempt invocations.
	Attempts int
	// Conflicts makes the next N attempts fail with ErrConflict after fn
	// returns, discarding their writes.
	Conflicts int
	// Err, when set, is returned from every transaction operation.
	Err error
	// Now is the server clock used to resolve sentinels. Zero means
	// time.Now at commit.
	Now time.Time
}

// NewMockDatabase creates an empty MockDatabase.
func NewMockDatabase() *MockDatabase {
	return &MockDatabase{Docs: make(map[string]map[string]any)}
}

// Seed stores a document directly, bypassing the transaction machinery.
func (m *MockDatabase) Seed(ref DocRef, data map[string]any) {
	m.Docs[ref.Path()] = data
}

// OpKinds returns just the kinds of the recorded operations, in order.
func (m *MockDatabase) OpKinds() []MockOpKind {
	kinds := make([]MockOpKind, len(m.Ops))
	for i, op := range m.Ops {
		kinds[i] = op.Kind
	}
	return kinds
}

// Collection implements Database.
func (m *MockDatabase) Collection(name string) CollectionRef {
	return CollectionRef{Name: name}
}

// Close implements Database.
func (m *MockDatabase) Close() error { return nil }

// RunTransaction implements Database. Writes are buffered per attempt and
// committed only when fn succeeds and no conflict is injected.
func (m *MockDatabase) RunTransaction(ctx context.Context, fn func(tx Transaction) error, opts TxOptions) error {
	return RunWithRetry(ctx, opts, func() error {
		m.Attempts++
		tx := &mockTx{db: m}
		if err := fn(tx); err != nil {
			return err
		}
		if m.Conflicts > 0 {
			m.Conflicts--
			return ErrConflict
		}
		tx.commit()
		return nil
	})
}

type mockWrite struct {
	data   map[string]any
	merge  bool
	delete bool
}

type mockTx struct {
	db     *MockDatabase
	writes []struct {
		path  string
		write mockWrite
	}
}

func (t *mockTx) record(op MockOp) {
	t.db.Ops = append(t.db.Ops, op)
}

func (t *mockTx) Get(ref DocRef) (Snapshot, error) {
	t.record(MockOp{Kind: MockOpGet, Ref: ref})
	if t.db.Err != nil {
		return Snapshot{}, t.db.Err
	}
	data, ok := t.db.Docs[ref.Path()]
	if !ok {
		return Snapshot{Ref: ref}, nil
	}
	return Snapshot{Ref: ref, Exists: true, Data: cloneMap(data)}, nil
}

func (t *mockTx) Set(ref DocRef, data map[string]any, opts SetOptions) error {
	t.record(MockOp{Kind: MockOpSet, Ref: ref, Data: cloneMap(data), Merge: opts.Merge})
	if t.db.Err != nil {
		return t.db.Err
	}
	t.stage(ref.Path(), mockWrite{data: cloneMap(data), merge: opts.Merge})
	return nil
}

func (t *mockTx) Update(ref DocRef, data map[string]any) error {
	t.record(MockOp{Kind: MockOpUpdate, Ref: ref, Data: cloneMap(data)})
	if t.db.Err != nil {
		return t.db.Err
	}
	if _, ok := t.db.Docs[ref.Path()]; !ok {
		return ErrNotFound
	}
	t.stage(ref.Path(), mockWrite{data: cloneMap(data), merge: true})
	return nil
}

func (t *mockTx) Delete(ref DocRef) error {
	t.record(MockOp{Kind: MockOpDelete, Ref: ref})
	if t.db.Err != nil {
		return t.db.Err
	}
	t.stage(ref.Path(), mockWrite{delete: true})
	return nil
}

func (t *mockTx) Query(coll CollectionRef, clauses []Clause) (Snapshot, bool, error) {
	t.record(MockOp{Kind: MockOpQuery, Coll: coll, Clauses: clauses})
	if t.db.Err != nil {
		return Snapshot{}, false, t.db.Err
	}
	prefix := coll.Name + "/"
	for _, path := range SortedKeys(t.db.Docs) {
		if len(path) <= len(prefix) || path[:len(prefix)] != prefix {
			continue
		}
		data := t.db.Docs[path]
		if MatchClauses(data, clauses) {
			ref, _ := ParseDocPath(path)
			return Snapshot{Ref: ref, Exists: true, Data: cloneMap(data)}, true, nil
		}
	}
	return Snapshot{}, false, nil
}

func (t *mockTx) stage(path string, w mockWrite) {
	t.writes = append(t.writes, struct {
		path  string
		write mockWrite
	}{path, w})
}

func (t *mockTx) commit() {
	now := t.db.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	for _, staged := range t.writes {
		switch {
		case staged.write.delete:
			delete(t.db.Docs, staged.path)
		case staged.write.merge:
			base := t.db.Docs[staged.path]
			t.db.Docs[staged.path] = Merge(base, staged.write.data, now)
		default:
			t.db.Docs[staged.path] = Resolve(staged.write.data, now)
		}
	}
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		if nested, ok := v.(map[string]any); ok {
			out[k] = cloneMap(nested)
			continue
		}
		out[k] = v
	}
	return out
}

// Compile-time interface checks.
var (
	_ Database    = (*MockDatabase)(nil)
	_ Transaction = (*mockTx)(nil)
)
