package domain

import (
	"context"
	"io"
	"time"
)

// RecordStore persists full market records, one document per condition ID.
type RecordStore interface {
	// Write persists the record, overwriting any previous version for the
	// same condition ID.
	Write(ctx context.Context, record MarketRecord) error
	// Read returns the record or ErrNotFound.
	Read(ctx context.Context, conditionID string) (MarketRecord, error)
	// List returns the condition IDs of every stored record.
	List(ctx context.Context) ([]string, error)
}

// RegistryStore persists the master index. Load on a fresh directory
// returns an empty index; every mutation is atomic from the caller's view.
type RegistryStore interface {
	Load(ctx context.Context) (Index, error)
	Save(ctx context.Context, ix Index) error
	// Append adds a new entry, failing with ErrDuplicateConditionID when the
	// condition ID is already present.
	Append(ctx context.Context, entry RegistryEntry) error
	// MarkSettled flips a single entry to settled. Fails with ErrNotFound or
	// ErrAlreadySettled.
	MarkSettled(ctx context.Context, conditionID string, winner Outcome) error
}

// LockManager serializes registry read-modify-write cycles across
// potentially concurrent agent instances.
type LockManager interface {
	// Acquire obtains the named lock for at most ttl, returning an unlock
	// function, or ErrLockHeld when another holder has it.
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Event  string
	Since  *time.Time
	Until  *time.Time
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only trail of lifecycle events.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}

// BlobWriter uploads opaque objects, used for registry snapshot backups.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// PriceCache stores recent gateway price reads.
type PriceCache interface {
	SetPrices(ctx context.Context, conditionID string, prices MarketPrices) error
	// GetPrices returns the cached prices or ErrNotFound.
	GetPrices(ctx context.Context, conditionID string) (MarketPrices, error)
}
