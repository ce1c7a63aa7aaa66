// Package docdb defines the contract between the model layer and the
// transactional document database that hosts it. It provides collection and
// document references, snapshots, query clauses, write sentinels, and the
// Database/Transaction interfaces implemented by the embedded backends.
package docdb

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Errors returned by backends. ErrConflict marks an attempt that lost an
// optimistic write race and may be retried; everything else is final.
var (
	ErrConflict = errors.New("docdb: transaction conflict")
	ErrNotFound = errors.New("docdb: document not found")
)

// DefaultMaxAttempts is used when TxOptions.MaxAttempts is zero or negative.
const DefaultMaxAttempts = 5

// CollectionRef identifies a collection by name.
type CollectionRef struct {
	Name string
}

// Doc returns a reference to the document with the given id.
func (c CollectionRef) Doc(id string) DocRef {
	return DocRef{Collection: c.Name, ID: id}
}

// NewDoc returns a reference to a fresh document with a generated id.
func (c CollectionRef) NewDoc() DocRef {
	return DocRef{Collection: c.Name, ID: uuid.NewString()}
}

// DocRef identifies a single document within a collection.
type DocRef struct {
	Collection string
	ID         string
}

// Path returns the "collection/id" form of the reference.
func (r DocRef) Path() string {
	return r.Collection + "/" + r.ID
}

// IsZero reports whether the reference is empty.
func (r DocRef) IsZero() bool {
	return r.Collection == "" && r.ID == ""
}

// ParseDocPath parses a "collection/id" path into a DocRef.
func ParseDocPath(path string) (DocRef, error) {
	parts := strings.SplitN(path, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return DocRef{}, fmt.Errorf("invalid document path %q", path)
	}
	return DocRef{Collection: parts[0], ID: parts[1]}, nil
}

// Op is a query comparison operator.
type Op string

const (
	OpEqual          Op = "=="
	OpLess           Op = "<"
	OpLessOrEqual    Op = "<="
	OpGreater        Op = ">"
	OpGreaterOrEqual Op = ">="
	OpIn             Op = "in"
	OpArrayContains  Op = "array-contains"
)

// Clause is a single (field, operator, value) query constraint.
// Field may be a dot-path into nested maps.
type Clause struct {
	Field string
	Op    Op
	Value any
}

// Where builds a query clause.
func Where(field string, op Op, value any) Clause {
	return Clause{Field: field, Op: op, Value: value}
}

// SetOptions controls Set behavior. With Merge the payload is deep-merged
// into the existing document; without it the document is replaced.
type SetOptions struct {
	Merge bool
}

// TxOptions configures a transaction run.
type TxOptions struct {
	MaxAttempts int
}

// Transaction is the handle passed to a transaction attempt. Writes are
// buffered and committed atomically when the attempt function returns nil.
type Transaction interface {
	// Get reads a document. The snapshot's Exists flag is false for a
	// missing document; that is not an error.
	Get(ref DocRef) (Snapshot, error)

	// Set writes a document, merging or replacing per opts.
	Set(ref DocRef, data map[string]any, opts SetOptions) error

	// Update merges fields into an existing document. Returns ErrNotFound
	// if the document does not exist.
	Update(ref DocRef, data map[string]any) error

	// Delete removes a document. Deleting a missing document is a no-op.
	Delete(ref DocRef) error

	// Query evaluates the clauses against a collection and returns the
	// first matching document in key order, if any.
	Query(coll CollectionRef, clauses []Clause) (Snapshot, bool, error)
}

// Database is a transaction-capable document database.
type Database interface {
	// Collection returns a reference to the named collection.
	Collection(name string) CollectionRef

	// RunTransaction runs fn inside a transaction, retrying on write
	// conflicts up to opts.MaxAttempts. Each retry invokes fn again with
	// a fresh transaction handle.
	RunTransaction(ctx context.Context, fn func(tx Transaction) error, opts TxOptions) error

	Close() error
}

// RunWithRetry invokes attempt until it returns a non-conflict result, up to
// the configured attempt ceiling. Backends share this loop so conflict
// semantics stay uniform.
func RunWithRetry(ctx context.Context, opts TxOptions, attempt func() error) error {
	max := opts.MaxAttempts
	if max <= 0 {
		max = DefaultMaxAttempts
	}

	var err error
	for i := 0; i < max; i++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		err = attempt()
		if !errors.Is(err, ErrConflict) {
			return err
		}
	}
	return fmt.Errorf("transaction failed after %d attempts: %w", max, err)
}
