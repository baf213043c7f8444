package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/PratikDhanave/celebration-webhook/internal/models"
)

//go:embed schema_sqlite.sql
var sqliteSchemaSQL string

// SQLiteStore is the embedded device registry used when no Postgres is configured.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the database file at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, errors.New("sqlite path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// EnsureSchema creates the tables. Safe to run multiple times.
func (s *SQLiteStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteSchemaSQL)
	return err
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() {
	_ = s.db.Close()
}

func (s *SQLiteStore) CreateDevice(ctx context.Context, d models.Device) error {
	if err := validDevice(d); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO devices(id, secret, label)
		VALUES (?, ?, ?)
		ON CONFLICT (id) DO NOTHING
	`, d.ID, d.Secret, d.Label)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrDeviceExists
	}
	return nil
}

func (s *SQLiteStore) GetDevice(ctx context.Context, id string) (models.Device, error) {
	var d models.Device
	err := s.db.QueryRowContext(ctx, `
		SELECT id, secret, label FROM devices WHERE id = ?
	`, id).Scan(&d.ID, &d.Secret, &d.Label)

	if errors.Is(err, sql.ErrNoRows) {
		return models.Device{}, ErrNotFound
	}
	return d, err
}

func (s *SQLiteStore) GetPrefs(ctx context.Context, id string) (models.Prefs, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `
		SELECT prefs FROM device_prefs WHERE device_id = ?
	`, id).Scan(&raw)

	if errors.Is(err, sql.ErrNoRows) {
		return models.DefaultPrefs(), nil
	}
	if err != nil {
		return models.Prefs{}, err
	}

	var prefs models.Prefs
	if err := json.Unmarshal([]byte(raw), &prefs); err != nil {
		return models.Prefs{}, err
	}
	return prefs, nil
}

func (s *SQLiteStore) PutPrefs(ctx context.Context, id string, prefs models.Prefs) error {
	raw, err := json.Marshal(prefs)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO device_prefs(device_id, prefs, updated_at)
		SELECT id, ?, CURRENT_TIMESTAMP FROM devices WHERE id = ?
		ON CONFLICT (device_id) DO UPDATE
		SET prefs = excluded.prefs, updated_at = excluded.updated_at
	`, string(raw), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
