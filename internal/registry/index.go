package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/outcomelab/marketd/internal/domain"
)

// registryLockKey names the lock guarding every index read-modify-write
// cycle. One key for the whole index: mutations are rare and cheap.
const registryLockKey = "market-registry"

// Index implements domain.RegistryStore on a single registry.json file.
// Load/Save are direct file operations; Append and MarkSettled are
// read-modify-write cycles serialized through the injected lock manager so
// concurrent agent instances cannot lose updates.
type Index struct {
	dir     string
	locks   domain.LockManager
	lockTTL time.Duration
}

// NewIndex creates an Index stored at dir/registry.json, serializing
// mutations with locks.
func NewIndex(dir string, locks domain.LockManager, lockTTL time.Duration) *Index {
	return &Index{dir: dir, locks: locks, lockTTL: lockTTL}
}

func (ix *Index) path() string {
	return filepath.Join(ix.dir, indexFileName)
}

// Load returns the current index. A missing file is the first-run case and
// yields an empty index, never an error.
func (ix *Index) Load(ctx context.Context) (domain.Index, error) {
	data, err := os.ReadFile(ix.path())
	if err != nil {
		if os.IsNotExist(err) {
			return domain.Index{Markets: []domain.RegistryEntry{}}, nil
		}
		return domain.Index{}, fmt.Errorf("registry: read index: %w", err)
	}

	var out domain.Index
	if err := json.Unmarshal(data, &out); err != nil {
		return domain.Index{}, fmt.Errorf("registry: decode index: %w", err)
	}
	if out.Markets == nil {
		out.Markets = []domain.RegistryEntry{}
	}
	return out, nil
}

// Save persists the full index atomically.
func (ix *Index) Save(ctx context.Context, in domain.Index) error {
	if err := ensureDir(ix.dir); err != nil {
		return err
	}
	if in.Markets == nil {
		in.Markets = []domain.RegistryEntry{}
	}

	data, err := json.MarshalIndent(in, "", "  ")
	if err != nil {
		return fmt.Errorf("registry: marshal index: %w", err)
	}
	return writeFileAtomic(ix.path(), append(data, '\n'))
}

// Append adds a new entry under the registry lock. Creation is append-only:
// a condition ID already present fails with ErrDuplicateConditionID rather
// than silently overwriting.
func (ix *Index) Append(ctx context.Context, entry domain.RegistryEntry) error {
	unlock, err := ix.locks.Acquire(ctx, registryLockKey, ix.lockTTL)
	if err != nil {
		return fmt.Errorf("registry: append %s: %w", entry.ConditionID, err)
	}
	defer unlock()

	in, err := ix.Load(ctx)
	if err != nil {
		return err
	}
	if _, ok := in.Find(entry.ConditionID); ok {
		return fmt.Errorf("registry: append %s: %w", entry.ConditionID, domain.ErrDuplicateConditionID)
	}

	in.Markets = append(in.Markets, entry)
	return ix.Save(ctx, in)
}

// MarkSettled flips one entry to settled under the registry lock. It fails
// with ErrNotFound for unknown IDs and ErrAlreadySettled when the entry is
// already resolved; settlement is not re-entrant.
func (ix *Index) MarkSettled(ctx context.Context, conditionID string, winner domain.Outcome) error {
	if !winner.Valid() {
		return domain.Invalid("winner", "must be YES or NO, got %q", winner)
	}

	unlock, err := ix.locks.Acquire(ctx, registryLockKey, ix.lockTTL)
	if err != nil {
		return fmt.Errorf("registry: mark settled %s: %w", conditionID, err)
	}
	defer unlock()

	in, err := ix.Load(ctx)
	if err != nil {
		return err
	}
	pos, ok := in.Find(conditionID)
	if !ok {
		return fmt.Errorf("registry: mark settled %s: %w", conditionID, domain.ErrNotFound)
	}
	if in.Markets[pos].IsSettled {
		return fmt.Errorf("registry: mark settled %s: %w", conditionID, domain.ErrAlreadySettled)
	}

	w := winner
	in.Markets[pos].IsSettled = true
	in.Markets[pos].Winner = &w
	return ix.Save(ctx, in)
}

// Compile-time interface check.
var _ domain.RegistryStore = (*Index)(nil)
