// Package store persists the device configuration record. The record is
// always loaded and written wholesale.
package store

import (
	"errors"

	"go.uber.org/zap"

	"github.com/sweeney/fridge-sensor/internal/settings"
)

// ErrNotFound is returned by Load when nothing has been stored yet.
var ErrNotFound = errors.New("store: no configuration stored")

// Store loads and saves the configuration record.
type Store interface {
	// Load returns the stored record exactly as written.
	Load() (settings.Config, error)

	// Save overwrites the stored record.
	Save(cfg settings.Config) error

	// Close releases the backing resources.
	Close() error
}

// LoadOrDefault loads the record from s. A missing or unreadable record is
// logged and replaced by settings.Default; it is never fatal. The firmware
// version is injected into the returned record.
func LoadOrDefault(s Store, version string, logger *zap.SugaredLogger) settings.Config {
	cfg, err := s.Load()
	switch {
	case errors.Is(err, ErrNotFound):
		logger.Infow("no stored configuration, using defaults")
		cfg = settings.Default()
	case err != nil:
		logger.Warnw("stored configuration unusable, using defaults", "error", err)
		cfg = settings.Default()
	}
	cfg.Normalize()
	cfg.Version = version
	return cfg
}
