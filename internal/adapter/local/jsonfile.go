// Package local implements the in-process, file-backed provider: all
// six adapter contracts backed by JSON collections under a data
// directory, one collection per store, each guarded by its own mutex.
//
// Grounded on internal/storage/memory/memory_storage.go's mutex-guarded
// map idiom and on the teacher's atomic-write convention (write to a
// temp file, then rename over the target) used throughout its local
// persistence layer.
package local

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// readJSONArray loads a JSON array file into dest, leaving dest as its
// zero value (an empty slice, once the caller initializes it) if the
// file does not yet exist.
func readJSONArray(path string, dest any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("local: read %s: %w", path, err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("local: decode %s: %w", path, err)
	}
	return nil
}

// writeJSONArrayAtomic serializes src and writes it via write-to-temp
// then rename, so a reader never observes a partially written file.
func writeJSONArrayAtomic(path string, src any) error {
	data, err := json.MarshalIndent(src, "", "  ")
	if err != nil {
		return fmt.Errorf("local: encode %s: %w", path, err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("local: mkdir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("local: create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("local: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("local: close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("local: rename temp file: %w", err)
	}
	return nil
}
