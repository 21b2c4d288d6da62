package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// filePrefix namespaces store files so unrelated files in the state
// directory are ignored when listing.
const filePrefix = "kv-"

// DirBackend persists each key as one file in a local directory. This is
// the default backend: per-machine state surviving restarts, the way
// browser-local storage survives reloads.
type DirBackend struct {
	path string
}

// NewDirBackend creates the directory if needed and returns a backend
// rooted at it.
func NewDirBackend(path string) (*DirBackend, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}
	return &DirBackend{path: path}, nil
}

func (d *DirBackend) file(key string) string {
	return filepath.Join(d.path, filePrefix+key)
}

// Read returns the bytes stored for key.
func (d *DirBackend) Read(_ context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(d.file(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotExist
		}
		return nil, fmt.Errorf("read from local state: %w", err)
	}
	return data, nil
}

// Write stores data under key, replacing any previous value.
func (d *DirBackend) Write(_ context.Context, key string, data []byte) error {
	if err := os.WriteFile(d.file(key), data, 0o600); err != nil {
		return fmt.Errorf("write to local state: %w", err)
	}
	return nil
}

// Remove deletes key. Deleting an absent key is not an error.
func (d *DirBackend) Remove(_ context.Context, key string) error {
	if err := os.Remove(d.file(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete from local state: %w", err)
	}
	return nil
}

// Keys lists all stored keys.
func (d *DirBackend) Keys(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(d.path)
	if err != nil {
		return nil, fmt.Errorf("read state directory: %w", err)
	}

	var keys []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), filePrefix) {
			continue
		}
		keys = append(keys, strings.TrimPrefix(entry.Name(), filePrefix))
	}
	return keys, nil
}
