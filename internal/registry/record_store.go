package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/outcomelab/marketd/internal/domain"
)

// indexFileName is the reserved name of the master index inside the
// registry directory; record files may not collide with it.
const indexFileName = "registry.json"

// RecordStore implements domain.RecordStore on the local filesystem, one
// JSON document per condition ID.
type RecordStore struct {
	dir string
}

// NewRecordStore creates a RecordStore rooted at dir. The directory is
// created lazily on first write.
func NewRecordStore(dir string) *RecordStore {
	return &RecordStore{dir: dir}
}

// recordPath maps a condition ID to its file, rejecting IDs that would
// escape the registry directory or shadow the index file.
func (s *RecordStore) recordPath(conditionID string) (string, error) {
	if conditionID == "" {
		return "", domain.Invalid("conditionId", "must not be empty")
	}
	name := conditionID + ".json"
	if name == indexFileName || filepath.Base(name) != name || strings.ContainsAny(conditionID, `/\`) {
		return "", domain.Invalid("conditionId", "unusable as record name: %q", conditionID)
	}
	return filepath.Join(s.dir, name), nil
}

// Write persists the record keyed by its condition ID. Writing the same ID
// twice overwrites the previous document; there is never more than one file
// per market.
func (s *RecordStore) Write(ctx context.Context, record domain.MarketRecord) error {
	path, err := s.recordPath(record.ConditionID)
	if err != nil {
		return err
	}
	if err := ensureDir(s.dir); err != nil {
		return err
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("registry: marshal record %s: %w", record.ConditionID, err)
	}
	return writeFileAtomic(path, append(data, '\n'))
}

// Read returns the record for conditionID or domain.ErrNotFound.
func (s *RecordStore) Read(ctx context.Context, conditionID string) (domain.MarketRecord, error) {
	path, err := s.recordPath(conditionID)
	if err != nil {
		return domain.MarketRecord{}, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return domain.MarketRecord{}, fmt.Errorf("registry: record %s: %w", conditionID, domain.ErrNotFound)
		}
		return domain.MarketRecord{}, fmt.Errorf("registry: read record %s: %w", conditionID, err)
	}

	var record domain.MarketRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return domain.MarketRecord{}, fmt.Errorf("registry: decode record %s: %w", conditionID, err)
	}
	return record, nil
}

// List returns the condition IDs of every record file in the registry
// directory. A missing directory is the first-run case and yields an empty
// list.
func (s *RecordStore) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("registry: list records: %w", err)
	}

	var ids []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || name == indexFileName || !strings.HasSuffix(name, ".json") || strings.HasPrefix(name, ".") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".json"))
	}
	return ids, nil
}

// Compile-time interface check.
var _ domain.RecordStore = (*RecordStore)(nil)
