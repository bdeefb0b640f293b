package facts

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const snapshotVersion = 1

type snapshot struct {
	Version int    `json:"version"`
	Tables  Tables `json:"tables"`
}

// LoadSnapshot reads tables written by SaveSnapshot. A missing file or a
// snapshot from another format version reports ok=false without error.
func LoadSnapshot(path string) (Tables, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Tables{}, false, nil
		}
		return Tables{}, false, fmt.Errorf("read fact snapshot: %w", err)
	}
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Tables{}, false, fmt.Errorf("parse fact snapshot: %w", err)
	}
	if snap.Version != snapshotVersion {
		return Tables{}, false, nil
	}
	return snap.Tables, true, nil
}

// SaveSnapshot writes tables to path, replacing it atomically.
func SaveSnapshot(path string, tables Tables) error {
	if err := writeJSONAtomic(path, snapshot{Version: snapshotVersion, Tables: tables}); err != nil {
		return fmt.Errorf("write fact snapshot: %w", err)
	}
	return nil
}

func writeJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("snapshot dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*.json")
	if err != nil {
		return fmt.Errorf("temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("rename file: %w", err)
	}
	return nil
}
