// Package settings persists the archiver's user settings as key-value pairs.
package settings

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"chatarchiver/internal/domain"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements domain.SettingsStore on a single-table SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore opens or creates the database at dbPath, creating its directory.
func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create settings directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("cannot open settings database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db, logger: logger}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("settings migration failed: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS settings (
		key         TEXT PRIMARY KEY,
		value       TEXT NOT NULL,
		updated_at  DATETIME DEFAULT CURRENT_TIMESTAMP
	);`)
	return err
}

// Load reads all keys. Missing or unreadable values keep their defaults.
func (s *SQLiteStore) Load(ctx context.Context) (domain.Settings, error) {
	out := domain.DefaultSettings()

	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return out, fmt.Errorf("query settings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key, raw string
		if err := rows.Scan(&key, &raw); err != nil {
			return out, fmt.Errorf("scan setting: %w", err)
		}
		if err := decodeInto(&out, key, raw); err != nil {
			s.logger.Warn("ignoring unreadable setting", "key", key, "err", err)
		}
	}
	if err := rows.Err(); err != nil {
		return out, fmt.Errorf("read settings: %w", err)
	}
	return sanitize(out), nil
}

// Update writes only the keys set in patch, inside one transaction.
func (s *SQLiteStore) Update(ctx context.Context, patch domain.SettingsPatch) error {
	values, err := encodePatch(patch)
	if err != nil {
		return err
	}
	if len(values) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin settings update: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	for key, raw := range values {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			key, raw, now,
		); err != nil {
			return fmt.Errorf("write setting %s: %w", key, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit settings update: %w", err)
	}
	s.logger.Debug("settings updated", "keys", len(values))
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func encodePatch(p domain.SettingsPatch) (map[string]string, error) {
	values := make(map[string]string, 3)
	add := func(key string, v any) error {
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode setting %s: %w", key, err)
		}
		values[key] = string(data)
		return nil
	}
	if p.AutoSave != nil {
		if err := add(domain.KeyAutoSave, *p.AutoSave); err != nil {
			return nil, err
		}
	}
	if p.IntervalMinutes != nil {
		if err := add(domain.KeyInterval, *p.IntervalMinutes); err != nil {
			return nil, err
		}
	}
	if p.Format != nil {
		if err := add(domain.KeyFormat, *p.Format); err != nil {
			return nil, err
		}
	}
	return values, nil
}

func decodeInto(s *domain.Settings, key, raw string) error {
	switch key {
	case domain.KeyAutoSave:
		return json.Unmarshal([]byte(raw), &s.AutoSave)
	case domain.KeyInterval:
		return json.Unmarshal([]byte(raw), &s.IntervalMinutes)
	case domain.KeyFormat:
		return json.Unmarshal([]byte(raw), &s.Format)
	}
	return nil
}

// sanitize restores defaults for values that can never be valid and clamps
// intervals too long for the timer.
func sanitize(s domain.Settings) domain.Settings {
	switch {
	case s.IntervalMinutes <= 0:
		s.IntervalMinutes = domain.DefaultIntervalMinutes
	case s.IntervalMinutes > domain.MaxIntervalMinutes:
		s.IntervalMinutes = domain.MaxIntervalMinutes
	}
	if !s.Format.Known() {
		s.Format = domain.FormatMarkdown
	}
	return s
}
