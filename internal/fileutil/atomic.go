// Package fileutil provides the atomic-write primitive the result store
// builds its round-file and tape persistence on.
package fileutil

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// writeAtomic is the shared core behind WriteFileAtomic and WriteJSONAtomic:
// it stages content in a temp file next to filename (same directory, so the
// final rename stays on one filesystem and is therefore atomic under
// POSIX), fsyncs before close, then renames into place. A reader of
// filename only ever observes it absent or fully written - never partial -
// which is what lets the result store use file presence as its resume
// check.
func writeAtomic(filename string, perm os.FileMode, write func(*os.File) error) error {
	dir := filepath.Dir(filename)
	base := filepath.Base(filename)

	tmp, err := os.CreateTemp(dir, base+".tmp.*")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", filename, err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if tmp != nil {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	if err := write(tmp); err != nil {
		return fmt.Errorf("write temp file for %s: %w", filename, err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp file for %s: %w", filename, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file for %s: %w", filename, err)
	}
	tmp = nil // closed cleanly, defer must not touch it again

	if err := os.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("chmod temp file for %s: %w", filename, err)
	}
	if err := os.Rename(tmpPath, filename); err != nil {
		return fmt.Errorf("rename temp file into %s: %w", filename, err)
	}
	return nil
}

// WriteFileAtomic writes data to filename atomically: readers see either no
// file or the complete file, never a partial one.
func WriteFileAtomic(filename string, data []byte, perm os.FileMode) error {
	return writeAtomic(filename, perm, func(f *os.File) error {
		_, err := f.Write(data)
		return err
	})
}

// WriteJSONAtomic marshals v as indented JSON and writes it atomically. Every
// artifact the result store produces (tournament.json, round-NN.json,
// tape.json) goes through this path rather than WriteFileAtomic directly,
// since none of them are ever raw bytes.
func WriteJSONAtomic(filename string, v any, perm os.FileMode) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filename, err)
	}
	return writeAtomic(filename, perm, func(f *os.File) error {
		_, err := f.Write(data)
		return err
	})
}
