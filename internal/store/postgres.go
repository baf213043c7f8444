package store

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/PratikDhanave/celebration-webhook/internal/models"
)

// schemaSQL is embedded so the service can self-bootstrap its database schema.
//
//go:embed schema.sql
var schemaSQL string

// PostgresStore is the durable device registry.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a connection pool and fails fast if DB is unreachable.
func NewPostgresStore(dbURL string) (*PostgresStore, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

// EnsureSchema applies schema.sql. Safe to run multiple times.
func (p *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, schemaSQL)
	return err
}

// Ping is used by readiness endpoint to validate DB connectivity.
func (p *PostgresStore) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Close shuts down the connection pool.
func (p *PostgresStore) Close() {
	p.pool.Close()
}

// CreateDevice inserts d and returns ErrDeviceExists when the id is taken.
func (p *PostgresStore) CreateDevice(ctx context.Context, d models.Device) error {
	if err := validDevice(d); err != nil {
		return err
	}

	// RETURNING 1 only when inserted; a taken id returns no rows.
	var one int
	err := p.pool.QueryRow(ctx, `
		INSERT INTO devices(id, secret, label)
		VALUES ($1,$2,$3)
		ON CONFLICT (id) DO NOTHING
		RETURNING 1
	`, d.ID, d.Secret, d.Label).Scan(&one)

	if errors.Is(err, pgx.ErrNoRows) {
		return ErrDeviceExists
	}
	return err
}

func (p *PostgresStore) GetDevice(ctx context.Context, id string) (models.Device, error) {
	var d models.Device
	err := p.pool.QueryRow(ctx, `
		SELECT id, secret, label FROM devices WHERE id=$1
	`, id).Scan(&d.ID, &d.Secret, &d.Label)

	if errors.Is(err, pgx.ErrNoRows) {
		return models.Device{}, ErrNotFound
	}
	return d, err
}

func (p *PostgresStore) GetPrefs(ctx context.Context, id string) (models.Prefs, error) {
	var raw []byte
	err := p.pool.QueryRow(ctx, `
		SELECT prefs FROM device_prefs WHERE device_id=$1
	`, id).Scan(&raw)

	if errors.Is(err, pgx.ErrNoRows) {
		return models.DefaultPrefs(), nil
	}
	if err != nil {
		return models.Prefs{}, err
	}

	var prefs models.Prefs
	if err := json.Unmarshal(raw, &prefs); err != nil {
		return models.Prefs{}, err
	}
	return prefs, nil
}

// PutPrefs replaces the stored prefs of device id.
func (p *PostgresStore) PutPrefs(ctx context.Context, id string, prefs models.Prefs) error {
	raw, err := json.Marshal(prefs)
	if err != nil {
		return err
	}

	tag, err := p.pool.Exec(ctx, `
		INSERT INTO device_prefs(device_id, prefs, updated_at)
		SELECT id, $2::jsonb, now() FROM devices WHERE id=$1
		ON CONFLICT (device_id) DO UPDATE
		SET prefs = EXCLUDED.prefs, updated_at = EXCLUDED.updated_at
	`, id, raw)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
