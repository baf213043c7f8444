package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Profile selects which webhook routes the server binds.
type Profile string

const (
	// ProfileListener binds GET / and POST /webhook.
	ProfileListener Profile = "listener"
	// ProfileCelebration binds POST / and blinks the strip on closed_won.
	ProfileCelebration Profile = "celebration"
	// ProfileRelay binds POST /webhook.
	ProfileRelay Profile = "relay"
)

// DefaultPort returns the port a profile listens on when PORT is unset.
func (p Profile) DefaultPort() int {
	switch p {
	case ProfileListener:
		return 10000
	default:
		return 5000
	}
}

func (p Profile) valid() bool {
	switch p {
	case ProfileListener, ProfileCelebration, ProfileRelay:
		return true
	}
	return false
}

const (
	defaultHost               = "0.0.0.0"
	defaultStoreDriver        = "sqlite"
	defaultDBPath             = ".data/devices.db"
	defaultLEDDriver          = "sim"
	defaultLEDCount           = 300
	defaultLEDPin             = 18
	defaultLEDBrightness      = 50
	defaultCelebrationHold    = 500 * time.Millisecond
	defaultCelebrationTimeout = 10 * time.Second
	defaultAuthMaxSkew        = 300 * time.Second
)

// Config contains runtime configuration required by the webhook server.
type Config struct {
	Profile            Profile       `mapstructure:"profile"`
	Host               string        `mapstructure:"host"`
	Port               int           `mapstructure:"port"`
	LogLevel           string        `mapstructure:"log-level"`
	LogFormat          string        `mapstructure:"log-format"`
	StoreDriver        string        `mapstructure:"store-driver"`
	DBURL              string        `mapstructure:"db-url"`
	DBPath             string        `mapstructure:"db-path"`
	AdminKeysRaw       string        `mapstructure:"admin-keys"`
	LEDDriver          string        `mapstructure:"led-driver"`
	LEDCount           int           `mapstructure:"led-count"`
	LEDPin             int           `mapstructure:"led-pin"`
	LEDBrightness      int           `mapstructure:"led-brightness"`
	CelebrationHold    time.Duration `mapstructure:"celebration-hold"`
	CelebrationTimeout time.Duration `mapstructure:"celebration-timeout"`
	RateLimitRPS       float64       `mapstructure:"rate-limit-rps"`
	RateLimitBurst     int           `mapstructure:"rate-limit-burst"`
	AuthMaxSkew        time.Duration `mapstructure:"auth-max-skew"`

	AdminKeys  map[string]string `mapstructure:"-"` // apiKey -> name
	ConfigPath string            `mapstructure:"-"`
}

// Addr is the listen address.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Load reads configuration from an optional file and the environment.
// PORT, DB_URL and ADMIN_KEYS are read without a prefix; every other key may be
// set as WEBHOOK_<KEY> (dashes become underscores).
func Load(configPath string) (Config, error) {
	var cfg Config

	v := viper.New()
	v.SetEnvPrefix("WEBHOOK")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	if err := v.BindEnv("port", "PORT"); err != nil {
		return cfg, err
	}
	if err := v.BindEnv("db-url", "DB_URL"); err != nil {
		return cfg, err
	}
	if err := v.BindEnv("admin-keys", "ADMIN_KEYS"); err != nil {
		return cfg, err
	}

	v.SetDefault("profile", string(ProfileListener))
	v.SetDefault("host", defaultHost)
	v.SetDefault("port", 0)
	v.SetDefault("log-level", "info")
	v.SetDefault("log-format", "text")
	v.SetDefault("store-driver", defaultStoreDriver)
	v.SetDefault("db-path", defaultDBPath)
	v.SetDefault("led-driver", defaultLEDDriver)
	v.SetDefault("led-count", defaultLEDCount)
	v.SetDefault("led-pin", defaultLEDPin)
	v.SetDefault("led-brightness", defaultLEDBrightness)
	v.SetDefault("celebration-hold", defaultCelebrationHold)
	v.SetDefault("celebration-timeout", defaultCelebrationTimeout)
	v.SetDefault("rate-limit-rps", 0)
	v.SetDefault("rate-limit-burst", 10)
	v.SetDefault("auth-max-skew", defaultAuthMaxSkew)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return cfg, fmt.Errorf("reading config %s: %w", configPath, err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, err
	}
	cfg.ConfigPath = v.ConfigFileUsed()

	cfg.Profile = Profile(strings.ToLower(strings.TrimSpace(string(cfg.Profile))))
	if !cfg.Profile.valid() {
		return cfg, fmt.Errorf("unknown profile %q", cfg.Profile)
	}
	if cfg.Port == 0 {
		cfg.Port = cfg.Profile.DefaultPort()
	}
	if cfg.Port < 0 || cfg.Port > 65535 {
		return cfg, fmt.Errorf("invalid port: %d", cfg.Port)
	}

	switch cfg.StoreDriver {
	case "sqlite", "memory":
	case "postgres":
		if strings.TrimSpace(cfg.DBURL) == "" {
			return cfg, errors.New("DB_URL required for postgres store")
		}
	default:
		return cfg, fmt.Errorf("unknown store-driver %q", cfg.StoreDriver)
	}

	switch cfg.LEDDriver {
	case "sim", "ws281x":
	default:
		return cfg, fmt.Errorf("unknown led-driver %q", cfg.LEDDriver)
	}
	if cfg.LEDCount <= 0 {
		return cfg, fmt.Errorf("invalid led-count: %d", cfg.LEDCount)
	}

	keys, err := ParseKeys(cfg.AdminKeysRaw)
	if err != nil {
		return cfg, err
	}
	cfg.AdminKeys = keys

	return cfg, nil
}

// ParseKeys parses "name1:key1,name2:key2" into key -> name.
func ParseKeys(raw string) (map[string]string, error) {
	keys := map[string]string{}

	raw = strings.TrimSpace(raw)
	if raw == "" {
		return keys, nil
	}

	for _, p := range strings.Split(raw, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		parts := strings.SplitN(p, ":", 2)
		if len(parts) != 2 {
			return nil, errors.New(`ADMIN_KEYS must be "name:key,name:key"`)
		}
		name := strings.TrimSpace(parts[0])
		key := strings.TrimSpace(parts[1])
		if name == "" || key == "" {
			return nil, errors.New(`ADMIN_KEYS must be "name:key,name:key"`)
		}
		keys[key] = name
	}
	return keys, nil
}
