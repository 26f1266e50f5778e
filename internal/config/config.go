package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
	Playback PlaybackConfig `yaml:"playback" mapstructure:"playback"`
	Scale    ScaleConfig    `yaml:"scale" mapstructure:"scale"`
	Events   EventsConfig   `yaml:"events" mapstructure:"events"`
	Catalog  CatalogConfig  `yaml:"catalog" mapstructure:"catalog"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
	// ConnectAttempts retries the initial Postgres connection.
	ConnectAttempts int           `yaml:"connect_attempts" mapstructure:"connect_attempts"`
	ConnectBackoff  time.Duration `yaml:"connect_backoff" mapstructure:"connect_backoff"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	// RateLimit is the sustained requests per second per client; 0 disables.
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	Burst     int     `yaml:"burst" mapstructure:"burst"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// PlaybackConfig configures event replay timing.
type PlaybackConfig struct {
	TickInterval  time.Duration `yaml:"tick_interval" mapstructure:"tick_interval"`
	FlashDuration time.Duration `yaml:"flash_duration" mapstructure:"flash_duration"`
}

// ScaleConfig configures colour scale memoisation and legends.
type ScaleConfig struct {
	CacheSize   int           `yaml:"cache_size" mapstructure:"cache_size"`
	CacheTTL    time.Duration `yaml:"cache_ttl" mapstructure:"cache_ttl"`
	LegendStops int           `yaml:"legend_stops" mapstructure:"legend_stops"`
}

// EventsConfig configures the police-report feed.
type EventsConfig struct {
	// Timezone interprets date filters and offset-less timestamps.
	Timezone string `yaml:"timezone" mapstructure:"timezone"`
}

// Location resolves Timezone.
func (c EventsConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, eris.Wrapf(err, "config: load timezone %q", c.Timezone)
	}
	return loc, nil
}

// CatalogConfig points at the indicator catalog.
type CatalogConfig struct {
	// Path to a catalog YAML file; empty uses the built-in catalog.
	Path string `yaml:"path" mapstructure:"path"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("LAGEKARTE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "lagekarte.db")
	v.SetDefault("store.connect_attempts", 5)
	v.SetDefault("store.connect_backoff", "1s")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.rate_limit", 20.0)
	v.SetDefault("server.burst", 40)
	v.SetDefault("playback.tick_interval", "1500ms")
	v.SetDefault("playback.flash_duration", "1300ms")
	v.SetDefault("scale.cache_size", 128)
	v.SetDefault("scale.cache_ttl", "1h")
	v.SetDefault("scale.legend_stops", 5)
	v.SetDefault("events.timezone", "Europe/Berlin")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks values the defaults cannot repair.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "postgres", "sqlite":
	default:
		return eris.Errorf("config: unknown store driver %q", c.Store.Driver)
	}
	if c.Store.DatabaseURL == "" {
		return eris.New("config: store.database_url is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return eris.Errorf("config: invalid server port %d", c.Server.Port)
	}
	if c.Server.RateLimit < 0 {
		return eris.New("config: server.rate_limit must not be negative")
	}
	if c.Playback.TickInterval <= 0 || c.Playback.FlashDuration <= 0 {
		return eris.New("config: playback intervals must be positive")
	}
	if c.Scale.CacheSize <= 0 {
		return eris.New("config: scale.cache_size must be positive")
	}
	if _, err := c.Events.Location(); err != nil {
		return err
	}
	return nil
}

// InitLogger configures the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
