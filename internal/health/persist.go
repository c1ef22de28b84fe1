package health

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"

	"wansteer/internal/model"
)

// SaveSnapshot serializes a snapshot to disk with gob. The scheduler writes
// one on shutdown so a restart can serve last-known health while the first
// probe cycles complete.
func SaveSnapshot(snap model.Snapshot, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create snapshot file %q: %w", path, err)
	}
	defer file.Close()

	if err := gob.NewEncoder(file).Encode(snap); err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot reads a snapshot written by SaveSnapshot. A missing file is
// not an error; it returns an empty snapshot and false.
func LoadSnapshot(path string) (model.Snapshot, bool, error) {
	file, err := os.Open(path)
	if os.IsNotExist(err) {
		return model.Snapshot{}, false, nil
	}
	if err != nil {
		return model.Snapshot{}, false, fmt.Errorf("failed to open snapshot file %q: %w", path, err)
	}
	defer file.Close()

	var snap model.Snapshot
	if err := gob.NewDecoder(file).Decode(&snap); err != nil {
		return model.Snapshot{}, false, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return snap, true, nil
}
