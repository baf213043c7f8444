package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/PratikDhanave/celebration-webhook/internal/logger"
	"github.com/PratikDhanave/celebration-webhook/internal/models"
)

var (
	// ErrNotFound is returned when a device id is unknown.
	ErrNotFound = errors.New("device not found")
	// ErrDeviceExists is returned by CreateDevice for a taken id.
	ErrDeviceExists = errors.New("device exists")
)

// DeviceStore persists registered devices and their effect preferences.
type DeviceStore interface {
	CreateDevice(ctx context.Context, d models.Device) error
	GetDevice(ctx context.Context, id string) (models.Device, error)
	// GetPrefs returns models.DefaultPrefs when the device never stored prefs.
	GetPrefs(ctx context.Context, id string) (models.Prefs, error)
	PutPrefs(ctx context.Context, id string, p models.Prefs) error
	Ping(ctx context.Context) error
	Close()
}

// Options selects and configures a DeviceStore backend.
type Options struct {
	Driver string // sqlite, postgres or memory
	DBURL  string
	DBPath string
}

// Open returns the backend named by opts.Driver with its schema applied.
func Open(ctx context.Context, opts Options) (DeviceStore, error) {
	switch opts.Driver {
	case "postgres":
		pg, err := NewPostgresStore(opts.DBURL)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			pg.Close()
			return nil, fmt.Errorf("postgres schema: %w", err)
		}
		logger.Get(logger.Store).Info("Device store opened", "driver", "postgres")
		return pg, nil
	case "sqlite":
		lite, err := NewSQLiteStore(opts.DBPath)
		if err != nil {
			return nil, fmt.Errorf("sqlite: %w", err)
		}
		if err := lite.EnsureSchema(ctx); err != nil {
			lite.Close()
			return nil, fmt.Errorf("sqlite schema: %w", err)
		}
		logger.Get(logger.Store).Info("Device store opened", "driver", "sqlite", "path", opts.DBPath)
		return lite, nil
	case "memory", "":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", opts.Driver)
	}
}

func validDevice(d models.Device) error {
	if d.ID == "" || d.Secret == "" {
		return errors.New("device id and secret required")
	}
	return nil
}
