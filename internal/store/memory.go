package store

import (
	"sync"

	"github.com/sweeney/fridge-sensor/internal/settings"
)

// Memory is an in-memory Store for tests. It records every saved record.
type Memory struct {
	mu sync.Mutex

	// Saved contains every record passed to Save, oldest first.
	Saved []settings.Config

	// LoadError, if set, will be returned by Load.
	LoadError error

	// SaveError, if set, will be returned by Save (the record is not kept).
	SaveError error

	current *settings.Config
}

// NewMemory creates a Memory store, optionally seeded with a record.
func NewMemory(seed *settings.Config) *Memory {
	m := &Memory{}
	if seed != nil {
		c := seed.Clone()
		m.current = &c
	}
	return m
}

// Load returns the last saved (or seeded) record.
func (m *Memory) Load() (settings.Config, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.LoadError != nil {
		return settings.Config{}, m.LoadError
	}
	if m.current == nil {
		return settings.Config{}, ErrNotFound
	}
	return m.current.Clone(), nil
}

// Save records cfg.
func (m *Memory) Save(cfg settings.Config) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveError != nil {
		return m.SaveError
	}
	c := cfg.Clone()
	m.current = &c
	m.Saved = append(m.Saved, cfg.Clone())
	return nil
}

// Close is a no-op.
func (m *Memory) Close() error {
	return nil
}

// SaveCount returns the number of successful saves.
func (m *Memory) SaveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Saved)
}

// Last returns the most recently saved record and whether there was one.
func (m *Memory) Last() (settings.Config, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Saved) == 0 {
		return settings.Config{}, false
	}
	return m.Saved[len(m.Saved)-1].Clone(), true
}
