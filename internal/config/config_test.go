package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_ProfileDefaultPorts(t *testing.T) {
	t.Setenv("PORT", "")

	cases := map[string]int{
		"listener":    10000,
		"celebration": 5000,
		"relay":       5000,
	}
	for profile, port := range cases {
		t.Run(profile, func(t *testing.T) {
			t.Setenv("WEBHOOK_PROFILE", profile)
			cfg, err := Load("")
			require.NoError(t, err)
			assert.Equal(t, Profile(profile), cfg.Profile)
			assert.Equal(t, port, cfg.Port)
		})
	}
}

func TestLoad_PortFromEnv(t *testing.T) {
	t.Setenv("WEBHOOK_PROFILE", "relay")
	t.Setenv("PORT", "8123")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 8123, cfg.Port)
	assert.Equal(t, "0.0.0.0:8123", cfg.Addr())
}

func TestLoad_InvalidPort(t *testing.T) {
	t.Setenv("PORT", "70000")

	_, err := Load("")
	require.Error(t, err)
}

func TestLoad_UnknownProfile(t *testing.T) {
	t.Setenv("WEBHOOK_PROFILE", "bogus")

	_, err := Load("")
	require.Error(t, err)
}

func TestLoad_PostgresRequiresDBURL(t *testing.T) {
	t.Setenv("WEBHOOK_STORE_DRIVER", "postgres")
	t.Setenv("DB_URL", "")

	_, err := Load("")
	require.Error(t, err)
}

func TestLoad_LEDDriver(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "sim", cfg.LEDDriver)

	t.Setenv("WEBHOOK_LED_DRIVER", "neopixel")
	_, err = Load("")
	require.Error(t, err)
}

func TestLoad_FromFile(t *testing.T) {
	t.Setenv("PORT", "")
	path := filepath.Join(t.TempDir(), "webhookd.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
profile: celebration
celebration-hold: 10ms
led-count: 60
admin-keys: "ops:secret-1"
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ProfileCelebration, cfg.Profile)
	assert.Equal(t, 5000, cfg.Port)
	assert.Equal(t, 10*time.Millisecond, cfg.CelebrationHold)
	assert.Equal(t, 60, cfg.LEDCount)
	assert.Equal(t, map[string]string{"secret-1": "ops"}, cfg.AdminKeys)
	assert.Equal(t, path, cfg.ConfigPath)
}

func TestParseKeys(t *testing.T) {
	keys, err := ParseKeys(" ops:k1 , ci:k2,")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"k1": "ops", "k2": "ci"}, keys)

	_, err = ParseKeys("nocolon")
	assert.Error(t, err)

	_, err = ParseKeys(":k1")
	assert.Error(t, err)
}

func TestLoadClient_DerivesWSURL(t *testing.T) {
	t.Setenv("LEDCLIENT_API_BASE", "https://hooks.example.com/")

	cfg, err := LoadClient("")
	require.NoError(t, err)
	assert.Equal(t, "https://hooks.example.com", cfg.APIBase)
	assert.Equal(t, "wss://hooks.example.com/ws", cfg.WSURL)
	assert.Equal(t, 5*time.Second, cfg.ReconnectDelay)
	assert.Equal(t, 32, cfg.QueueSize)
}

func TestLoadIdentity(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "client.json")
	require.NoError(t, os.WriteFile(good, []byte(`{"deviceId":"dev-1","deviceSecret":"abc"}`), 0o644))

	id, err := LoadIdentity(good)
	require.NoError(t, err)
	assert.Equal(t, "dev-1", id.DeviceID)
	assert.Equal(t, "abc", id.DeviceSecret)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"deviceId":"dev-1"}`), 0o644))
	_, err = LoadIdentity(bad)
	assert.Error(t, err)
}
