package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PratikDhanave/celebration-webhook/internal/models"
)

// backends returns every store reachable from the test environment.
// Postgres joins only when DB_URL is set.
func backends(t *testing.T) map[string]DeviceStore {
	t.Helper()
	ctx := context.Background()

	out := map[string]DeviceStore{"memory": NewMemoryStore()}

	lite, err := Open(ctx, Options{Driver: "sqlite", DBPath: filepath.Join(t.TempDir(), "devices.db")})
	require.NoError(t, err)
	out["sqlite"] = lite

	if url := os.Getenv("DB_URL"); url != "" {
		pg, err := Open(ctx, Options{Driver: "postgres", DBURL: url})
		require.NoError(t, err)
		out["postgres"] = pg
	}

	t.Cleanup(func() {
		for _, s := range out {
			s.Close()
		}
	})
	return out
}

// uniqueID generates an id that never collides with previous runs.
func uniqueID(prefix string) string {
	return fmt.Sprintf("dev-%s-%d", prefix, time.Now().UnixNano())
}

func TestDeviceStore_CreateAndGet(t *testing.T) {
	for name, st := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			id := uniqueID(name)

			d := models.Device{ID: id, Secret: "s3cr3t", Label: "office strip"}
			require.NoError(t, st.CreateDevice(ctx, d))

			got, err := st.GetDevice(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, d, got)

			err = st.CreateDevice(ctx, d)
			assert.ErrorIs(t, err, ErrDeviceExists)
		})
	}
}

func TestDeviceStore_UnknownDevice(t *testing.T) {
	for name, st := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := st.GetDevice(ctx, "missing")
			assert.ErrorIs(t, err, ErrNotFound)

			err = st.PutPrefs(ctx, "missing", models.DefaultPrefs())
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestDeviceStore_PrefsDefaultThenReplace(t *testing.T) {
	for name, st := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			id := uniqueID(name)
			require.NoError(t, st.CreateDevice(ctx, models.Device{ID: id, Secret: "x"}))

			p, err := st.GetPrefs(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, models.DefaultPrefs(), p)

			custom := models.Prefs{
				Idle:   models.EffectPref{Effect: "breath", Color: "#ff0000"},
				Events: map[string]models.EffectPref{"closed_won": {Effect: "rainbow", Cycles: 2}},
			}
			require.NoError(t, st.PutPrefs(ctx, id, custom))

			p, err = st.GetPrefs(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, custom, p)

			custom.Idle.Color = "#00ff00"
			require.NoError(t, st.PutPrefs(ctx, id, custom))
			p, err = st.GetPrefs(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, "#00ff00", p.Idle.Color)
		})
	}
}

func TestDeviceStore_RejectsIncompleteDevice(t *testing.T) {
	for name, st := range backends(t) {
		t.Run(name, func(t *testing.T) {
			err := st.CreateDevice(context.Background(), models.Device{ID: "only-id"})
			assert.Error(t, err)
		})
	}
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), Options{Driver: "mongo"})
	assert.Error(t, err)
}
