package config

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	NATS        NATSConfig        `mapstructure:"nats"`
	Valkey      ValkeyConfig      `mapstructure:"valkey"`
	Telemetry   TelemetryConfig   `mapstructure:"telemetry"`
	Map         MapConfig         `mapstructure:"map"`
	Diagnostics DiagnosticsConfig `mapstructure:"diagnostics"`
	Log         LogConfig         `mapstructure:"log"`
}

type ServerConfig struct {
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
	CORSOrigins  string `mapstructure:"cors_origins"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type NATSConfig struct {
	URL string `mapstructure:"url"`
}

type ValkeyConfig struct {
	Addr        string `mapstructure:"addr"`
	SnapshotTTL int    `mapstructure:"snapshot_ttl"`
}

type TelemetryConfig struct {
	ServiceName string  `mapstructure:"service_name"`
	OTLPAddr    string  `mapstructure:"otlp_addr"`
	Enabled     bool    `mapstructure:"enabled"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

// MapConfig describes the map view and its initial camera.
type MapConfig struct {
	Width        float64 `mapstructure:"width"`
	Height       float64 `mapstructure:"height"`
	TileSize     float64 `mapstructure:"tile_size"`
	StyleURL     string  `mapstructure:"style_url"`
	InitialLat   float64 `mapstructure:"initial_lat"`
	InitialLng   float64 `mapstructure:"initial_lng"`
	InitialZoom  float64 `mapstructure:"initial_zoom"`
	MinZoom      float64 `mapstructure:"min_zoom"`
	MaxZoom      float64 `mapstructure:"max_zoom"`
	AnimationMS  int     `mapstructure:"animation_ms"`
	StyleRetries uint64  `mapstructure:"style_retries"`
	StyleTimeout int     `mapstructure:"style_timeout"`
}

// AnimationDuration is AnimationMS as a duration.
func (m MapConfig) AnimationDuration() time.Duration {
	return time.Duration(m.AnimationMS) * time.Millisecond
}

type DiagnosticsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	UserID  string `mapstructure:"user_id"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables.
func Load(service string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("server.cors_origins", "*")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "wavemap")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "wavemap")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("valkey.snapshot_ttl", 86400)
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.otlp_addr", "tempo:4317")
	v.SetDefault("telemetry.enabled", true)
	v.SetDefault("telemetry.sample_ratio", 1.0)
	v.SetDefault("map.width", 1080)
	v.SetDefault("map.height", 1920)
	v.SetDefault("map.tile_size", 512)
	v.SetDefault("map.style_url", "")
	v.SetDefault("map.initial_lat", 0)
	v.SetDefault("map.initial_lng", 0)
	v.SetDefault("map.initial_zoom", 2)
	v.SetDefault("map.min_zoom", 0)
	v.SetDefault("map.max_zoom", 22)
	v.SetDefault("map.animation_ms", 500)
	v.SetDefault("map.style_retries", 3)
	v.SetDefault("map.style_timeout", 30)
	v.SetDefault("diagnostics.enabled", true)
	v.SetDefault("diagnostics.user_id", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: WAVEMAP_MAP_MAX_ZOOM → map.max_zoom
	v.SetEnvPrefix("WAVEMAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Database.Host == "" {
		errs = append(errs, "database.host is required")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", c.Database.Port))
	}
	if c.Database.User == "" {
		errs = append(errs, "database.user is required")
	}
	if c.Database.DBName == "" {
		errs = append(errs, "database.dbname is required")
	}
	if c.NATS.URL == "" {
		errs = append(errs, "nats.url is required")
	}
	if c.Valkey.Addr == "" {
		errs = append(errs, "valkey.addr is required")
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		errs = append(errs, fmt.Sprintf("telemetry.sample_ratio must be 0-1, got %g", c.Telemetry.SampleRatio))
	}

	m := c.Map
	if m.Width <= 0 || m.Height <= 0 {
		errs = append(errs, fmt.Sprintf("map.width and map.height must be positive, got %gx%g", m.Width, m.Height))
	}
	if m.TileSize <= 0 {
		errs = append(errs, "map.tile_size must be positive")
	}
	if m.MinZoom > m.MaxZoom {
		errs = append(errs, fmt.Sprintf("map.min_zoom (%g) must not exceed map.max_zoom (%g)", m.MinZoom, m.MaxZoom))
	}
	if math.Abs(m.InitialLat) > 90 || math.Abs(m.InitialLng) > 180 {
		errs = append(errs, "map.initial_lat/initial_lng out of range")
	}
	if m.AnimationMS <= 0 {
		errs = append(errs, "map.animation_ms must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
