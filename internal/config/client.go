package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ClientConfig configures the LED device client.
type ClientConfig struct {
	APIBase        string        `mapstructure:"api-base"`
	WSURL          string        `mapstructure:"ws-url"`
	IdentityFile   string        `mapstructure:"identity-file"`
	LogLevel       string        `mapstructure:"log-level"`
	LogFormat      string        `mapstructure:"log-format"`
	LEDDriver      string        `mapstructure:"led-driver"`
	LEDCount       int           `mapstructure:"led-count"`
	LEDPin         int           `mapstructure:"led-pin"`
	LEDBrightness  int           `mapstructure:"led-brightness"`
	IdleColor      string        `mapstructure:"idle-color"`
	ReconnectDelay time.Duration `mapstructure:"reconnect-delay"`
	PingInterval   time.Duration `mapstructure:"ping-interval"`
	QueueSize      int           `mapstructure:"queue-size"`
}

// Identity is the device credential pair issued by POST /register.
type Identity struct {
	DeviceID     string `mapstructure:"deviceId" json:"deviceId"`
	DeviceSecret string `mapstructure:"deviceSecret" json:"deviceSecret"`
}

// LoadClient reads client settings from an optional file and LEDCLIENT_* env vars.
func LoadClient(configPath string) (ClientConfig, error) {
	var cfg ClientConfig

	v := viper.New()
	v.SetEnvPrefix("LEDCLIENT")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	v.SetDefault("api-base", "http://localhost:5000")
	v.SetDefault("ws-url", "")
	v.SetDefault("identity-file", "client.json")
	v.SetDefault("log-level", "info")
	v.SetDefault("log-format", "text")
	v.SetDefault("led-driver", defaultLEDDriver)
	v.SetDefault("led-count", defaultLEDCount)
	v.SetDefault("led-pin", defaultLEDPin)
	v.SetDefault("led-brightness", 255)
	v.SetDefault("idle-color", "#0000ff")
	v.SetDefault("reconnect-delay", 5*time.Second)
	v.SetDefault("ping-interval", 30*time.Second)
	v.SetDefault("queue-size", 32)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return cfg, fmt.Errorf("reading config %s: %w", configPath, err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, err
	}

	cfg.APIBase = strings.TrimRight(strings.TrimSpace(cfg.APIBase), "/")
	if cfg.APIBase == "" {
		return cfg, errors.New("api-base required")
	}
	if cfg.WSURL == "" {
		cfg.WSURL = wsURLFromBase(cfg.APIBase)
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 32
	}
	return cfg, nil
}

// LoadIdentity reads the device identity file.
func LoadIdentity(path string) (Identity, error) {
	var id Identity

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		return id, fmt.Errorf("reading identity %s: %w", path, err)
	}
	if err := v.Unmarshal(&id); err != nil {
		return id, err
	}
	if strings.TrimSpace(id.DeviceID) == "" || strings.TrimSpace(id.DeviceSecret) == "" {
		return id, fmt.Errorf("%s missing deviceId or deviceSecret", path)
	}
	return id, nil
}

func wsURLFromBase(base string) string {
	switch {
	case strings.HasPrefix(base, "https://"):
		return "wss://" + strings.TrimPrefix(base, "https://") + "/ws"
	case strings.HasPrefix(base, "http://"):
		return "ws://" + strings.TrimPrefix(base, "http://") + "/ws"
	default:
		return "ws://" + base + "/ws"
	}
}
