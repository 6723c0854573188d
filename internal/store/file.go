package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sweeney/fridge-sensor/internal/settings"
)

// FileStore keeps the record as an indented JSON document.
type FileStore struct {
	path string
}

// NewFileStore creates a store backed by the JSON file at path.
// The file is created on the first Save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file path.
func (f *FileStore) Path() string {
	return f.path
}

// Load reads and decodes the whole file.
func (f *FileStore) Load() (settings.Config, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return settings.Config{}, ErrNotFound
	}
	if err != nil {
		return settings.Config{}, fmt.Errorf("read %s: %w", f.path, err)
	}

	var cfg settings.Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return settings.Config{}, fmt.Errorf("decode %s: %w", f.path, err)
	}
	return cfg, nil
}

// Save writes the record to a temporary file and renames it over the old one,
// so a power cut never leaves a half-written record behind.
func (f *FileStore) Save(cfg settings.Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", tmp.Name(), err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("replace %s: %w", f.path, err)
	}
	return nil
}

// Close is a no-op for the file store.
func (f *FileStore) Close() error {
	return nil
}
