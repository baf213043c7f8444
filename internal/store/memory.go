package store

import (
	"context"
	"sync"

	"github.com/PratikDhanave/celebration-webhook/internal/models"
)

// MemoryStore keeps devices in process memory. Registrations are lost on restart.
type MemoryStore struct {
	mu      sync.RWMutex
	devices map[string]models.Device
	prefs   map[string]models.Prefs
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		devices: map[string]models.Device{},
		prefs:   map[string]models.Prefs{},
	}
}

func (m *MemoryStore) CreateDevice(_ context.Context, d models.Device) error {
	if err := validDevice(d); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.devices[d.ID]; exists {
		return ErrDeviceExists
	}
	m.devices[d.ID] = d
	return nil
}

func (m *MemoryStore) GetDevice(_ context.Context, id string) (models.Device, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.devices[id]
	if !ok {
		return models.Device{}, ErrNotFound
	}
	return d, nil
}

func (m *MemoryStore) GetPrefs(_ context.Context, id string) (models.Prefs, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if p, ok := m.prefs[id]; ok {
		return p, nil
	}
	return models.DefaultPrefs(), nil
}

func (m *MemoryStore) PutPrefs(_ context.Context, id string, p models.Prefs) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.devices[id]; !ok {
		return ErrNotFound
	}
	m.prefs[id] = p
	return nil
}

func (m *MemoryStore) Ping(context.Context) error { return nil }

func (m *MemoryStore) Close() {}
