package grade

import (
	"context"
	"errors"
)

// ErrNotFound is returned (possibly wrapped) when an update or delete
// targets a record that does not exist.
var ErrNotFound = errors.New("record not found")

// Store persists grade records. Implementations must make BulkInsert a
// single all-or-nothing operation, or document precisely when it is not.
type Store interface {
	// List returns every record, newest first. Records created by the same
	// bulk insert are ordered with the later row first.
	List(ctx context.Context) ([]Record, error)

	// Count returns the number of stored records.
	Count(ctx context.Context) (int64, error)

	// BulkInsert persists all candidates together and returns how many were
	// written. An empty slice is a no-op.
	BulkInsert(ctx context.Context, candidates []Candidate) (int, error)

	// Update replaces the four input fields and the percentage of record id,
	// keeping its ID and CreatedAt. Returns ErrNotFound for unknown ids.
	Update(ctx context.Context, id string, c Candidate) (Record, error)

	// Delete removes record id. Returns ErrNotFound for unknown ids.
	Delete(ctx context.Context, id string) error
}
