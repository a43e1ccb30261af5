// Package registry implements the file-backed market record store and the
// master registry index. The on-disk layout is a contract with external
// tooling: <dir>/registry.json holds the index, <dir>/<conditionId>.json
// holds one full record per market. Every write goes through an atomic
// temp-file rename so a crashed writer never leaves a torn file.
package registry

import (
	"fmt"
	"os"
	"path/filepath"
)

// writeFileAtomic writes data to path by creating a temporary file in the
// same directory and renaming it over the target. Rename within one
// directory is atomic on POSIX filesystems, so readers observe either the
// old or the new content, never a partial write.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("registry: create temp file in %s: %w", dir, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("registry: write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("registry: sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("registry: close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("registry: chmod temp file: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("registry: rename %s: %w", path, err)
	}
	return nil
}

// ensureDir creates the registry directory if it does not exist yet.
// Idempotent; first-run convenience, not an error path.
func ensureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("registry: create dir %s: %w", dir, err)
	}
	return nil
}
