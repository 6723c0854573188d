package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/sweeney/fridge-sensor/internal/settings"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS config (
	id         INTEGER PRIMARY KEY CHECK (id = 1),
	body       TEXT    NOT NULL,
	updated_at TEXT    NOT NULL
)`

// SQLiteStore keeps the record as a single row in a SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore opens (and if needed creates) the database at dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite database: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("create config table: %w", err)
	}

	return &SQLiteStore{db: db, dbPath: dbPath}, nil
}

// Load reads the single configuration row.
func (s *SQLiteStore) Load() (settings.Config, error) {
	var body string
	err := s.db.QueryRow(`SELECT body FROM config WHERE id = 1`).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return settings.Config{}, ErrNotFound
	}
	if err != nil {
		return settings.Config{}, fmt.Errorf("query config: %w", err)
	}

	var cfg settings.Config
	if err := json.Unmarshal([]byte(body), &cfg); err != nil {
		return settings.Config{}, fmt.Errorf("decode config row: %w", err)
	}
	return cfg, nil
}

// Save replaces the configuration row.
func (s *SQLiteStore) Save(cfg settings.Config) error {
	body, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO config (id, body, updated_at) VALUES (1, ?, ?)
		ON CONFLICT (id) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at`,
		string(body), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("write config row: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
