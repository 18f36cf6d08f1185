// Package sqlite persists user preferences, including the storm alert flag,
// in a local SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	_ "modernc.org/sqlite"
)

const alertStateKey = "storm_alert_active"

const schema = `
CREATE TABLE IF NOT EXISTS preferences (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
)`

// Preferences is a key/value store backed by SQLite.
// It implements domain.AlertStateStore.
type Preferences struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and applies the schema.
func Open(ctx context.Context, path string) (*Preferences, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create state dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// A single connection serialises writers and keeps :memory: databases shared.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite database: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate preferences: %w", err)
	}
	return &Preferences{db: db}, nil
}

// Get returns the value stored for key and whether it was present.
func (p *Preferences) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := p.db.QueryRowContext(ctx, `SELECT value FROM preferences WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get preference %s: %w", key, err)
	}
	return value, true, nil
}

// Set stores value under key, replacing any previous value.
func (p *Preferences) Set(ctx context.Context, key, value string) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO preferences (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value)
	if err != nil {
		return fmt.Errorf("set preference %s: %w", key, err)
	}
	return nil
}

// AlertActive reports whether an alert has been raised for the current storm
// episode. An unset flag reads as false.
func (p *Preferences) AlertActive(ctx context.Context) (bool, error) {
	v, ok, err := p.Get(ctx, alertStateKey)
	if err != nil || !ok {
		return false, err
	}
	active, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("parse %s: %w", alertStateKey, err)
	}
	return active, nil
}

// SetAlertActive persists the storm alert flag.
func (p *Preferences) SetAlertActive(ctx context.Context, active bool) error {
	return p.Set(ctx, alertStateKey, strconv.FormatBool(active))
}

// CheckReadiness pings the database.
func (p *Preferences) CheckReadiness(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

func (p *Preferences) Close() error {
	return p.db.Close()
}
