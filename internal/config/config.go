package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type StoreConfig struct {
	Driver         string        `mapstructure:"driver"`
	SQLitePath     string        `mapstructure:"sqlite_path"`
	MongoURI       string        `mapstructure:"mongo_uri"`
	MongoDatabase  string        `mapstructure:"mongo_database"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

type RelayConfig struct {
	SendBuffer int     `mapstructure:"send_buffer"`
	RateLimit  float64 `mapstructure:"rate_limit"`
	RateBurst  int     `mapstructure:"rate_burst"`
	KickSlow   bool    `mapstructure:"kick_slow"`
}

type Config struct {
	Mode          string        `mapstructure:"mode"`
	Port          int           `mapstructure:"port"`
	LogLevel      string        `mapstructure:"log_level"`
	ReadLimit     int64         `mapstructure:"read_limit"`
	PingPeriod    time.Duration `mapstructure:"ping_period"`
	WriteWait     time.Duration `mapstructure:"write_wait"`
	Secret        string        `mapstructure:"secret"`
	TokenTTL      time.Duration `mapstructure:"token_ttl"`
	BcryptCost    int           `mapstructure:"bcrypt_cost"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	Store         StoreConfig   `mapstructure:"store"`
	Relay         RelayConfig   `mapstructure:"relay"`
}

const (
	minSecretLen = 16
	devSecret    = "huddle-dev-secret-change-me"
)

var (
	ErrUnknownDriver = errors.New("unknown store driver")
	ErrWeakSecret    = errors.New("secret is too short")
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 5000)
	v.SetDefault("log_level", "info")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("write_wait", "5s")
	v.SetDefault("secret", "")
	v.SetDefault("token_ttl", "1h")
	v.SetDefault("bcrypt_cost", 10)
	v.SetDefault("sweep_interval", "300s")

	v.SetDefault("store.driver", "memory")
	v.SetDefault("store.sqlite_path", "huddle.db")
	v.SetDefault("store.mongo_uri", "mongodb://localhost:27017")
	v.SetDefault("store.mongo_database", "roomDB")
	v.SetDefault("store.connect_timeout", "20s")

	v.SetDefault("relay.send_buffer", 32)
	v.SetDefault("relay.rate_limit", 20.0)
	v.SetDefault("relay.rate_burst", 40)
	v.SetDefault("relay.kick_slow", false)
}

// Load reads config/config.<CONFIG_ENV>.yaml on top of defaults; HUDDLE_* env vars win.
func Load() (*Config, error) {
	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	return LoadFile(fmt.Sprintf("config/config.%s.yaml", env))
}

func LoadFile(fileName string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(fileName)
	v.SetEnvPrefix("huddle")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).Str("store", cfg.Store.Driver).Msg("config ready")
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "memory", "sqlite", "mongo":
	default:
		return fmt.Errorf("%w: %q", ErrUnknownDriver, c.Store.Driver)
	}
	if c.Secret == "" && c.Mode != "release" {
		c.Secret = devSecret
	}
	if len(c.Secret) < minSecretLen {
		return ErrWeakSecret
	}
	if c.Relay.SendBuffer <= 0 {
		c.Relay.SendBuffer = 32
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = 300 * time.Second
	}
	if c.TokenTTL <= 0 {
		c.TokenTTL = time.Hour
	}
	return nil
}
