package run

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/quiver-db/quiver/pkg/bloom"
)

// removeIfExists deletes path, treating an already-missing file as success.
func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("run: remove %s: %w", path, err)
	}
	return nil
}

// writeBloomAtomic persists a filter's raw binary encoding via temp file
// plus rename, mirroring writeJSONAtomic but for the non-JSON sidecar.
func writeBloomAtomic(path string, f *bloom.Filter) error {
	dir := filepath.Dir(path)
	tmpPath := filepath.Join(dir, fmt.Sprintf(".%s.tmp", filepath.Base(path)))
	if err := os.WriteFile(tmpPath, f.Marshal(), 0o644); err != nil {
		return fmt.Errorf("run: write %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("run: rename %s to %s: %w", tmpPath, path, err)
	}
	return nil
}

func readBloom(path string) (*bloom.Filter, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("run: read %s: %w", path, err)
	}
	f, err := bloom.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, path, err)
	}
	return f, nil
}
