package repository

import (
	"context"
	"time"

	"quarklog/internal/model"
)

// RecordStore defines durable persistence of records. Implementations live in
// subpackages (sqlite, jsonl) and contain no business logic.
type RecordStore interface {
	// Initialize ensures the storage location and schema exist. It is idempotent.
	Initialize(ctx context.Context) error

	// Insert stores a new record with a fresh id and the current time and returns the id.
	Insert(ctx context.Context, text string) (model.RecordID, error)

	// ListAll returns every stored record. Order is backend-defined; callers that need
	// a specific order sort the result themselves.
	ListAll(ctx context.Context) ([]model.Record, error)

	// Close releases the underlying storage handle.
	Close() error
}

// Clock returns the time used to stamp new records.
type Clock func() time.Time

// SystemClock stamps records with the local wall clock.
func SystemClock() time.Time {
	return time.Now()
}
