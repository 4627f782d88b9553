package calibration

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Persister loads and saves the whole calibration map.
type Persister interface {
	// Load returns the stored map. A missing store returns an empty map and
	// no error. Undecodable data returns an error wrapping ErrCorrupt.
	Load() (map[string]Record, error)

	// Save replaces the stored map. An empty map clears the store.
	Save(records map[string]Record) error
}

// JSONFile persists the map as a JSON object at Path.
type JSONFile struct {
	Path string
}

// Load reads the JSON file.
func (f JSONFile) Load() (map[string]Record, error) {
	data, err := os.ReadFile(f.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading calibration file: %w", err)
	}

	records := map[string]Record{}
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, f.Path, err)
	}
	if records == nil {
		// A literal null is not a valid calibration file.
		return nil, fmt.Errorf("%w: %s: null document", ErrCorrupt, f.Path)
	}
	return records, nil
}

// Save writes the map atomically via a temporary file and rename.
func (f JSONFile) Save(records map[string]Record) error {
	if len(records) == 0 {
		if err := os.Remove(f.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("removing calibration file: %w", err)
		}
		return nil
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding calibration: %w", err)
	}

	dir := filepath.Dir(f.Path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("creating calibration directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".calibration-*.json")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing calibration: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing calibration: %w", err)
	}
	if err := os.Rename(tmpName, f.Path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing calibration file: %w", err)
	}
	return nil
}
