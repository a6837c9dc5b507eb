// Package config loads trackconv settings from defaults, an optional YAML
// file and TRACKCONV_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/planbiir/trackconv/internal/elevation"
	"github.com/planbiir/trackconv/internal/pipeline"
	"github.com/planbiir/trackconv/internal/track"
)

// EnvPrefix prefixes environment overrides: TRACKCONV_PIPELINE_MIN_DISTANCE
// sets pipeline.min_distance.
const EnvPrefix = "TRACKCONV"

// Config holds all application configuration.
type Config struct {
	Log       LogConfig         `mapstructure:"log" yaml:"log"`
	Server    ServerConfig      `mapstructure:"server" yaml:"server"`
	Pipeline  pipeline.Options  `mapstructure:"pipeline" yaml:"pipeline"`
	Elevation elevation.Options `mapstructure:"elevation" yaml:"elevation"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" yaml:"format" validate:"oneof=text json"`
}

type ServerConfig struct {
	Addr         string        `mapstructure:"addr" yaml:"addr" validate:"required"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout" yaml:"read_timeout" validate:"gt=0"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout" validate:"gt=0"`
	MaxUploadMB  int           `mapstructure:"max_upload_mb" yaml:"max_upload_mb" validate:"gte=1,lte=1024"`
}

func setDefaults(v *viper.Viper) {
	p := pipeline.DefaultOptions()

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 120*time.Second)
	v.SetDefault("server.max_upload_mb", 32)

	v.SetDefault("pipeline.min_distance", p.MinDistanceMeters)
	v.SetDefault("pipeline.waypoints", p.ExtractWaypoints)
	v.SetDefault("pipeline.elevation", p.IncludeElevation)
	v.SetDefault("pipeline.grouping", string(p.Grouping))
	v.SetDefault("pipeline.target_format", "")
	v.SetDefault("pipeline.workers", 0)

	v.SetDefault("elevation.source", elevation.SourceNone)
	v.SetDefault("elevation.url", elevation.DefaultURL)
	v.SetDefault("elevation.table_path", "")
	v.SetDefault("elevation.timeout", elevation.DefaultTimeout)
	v.SetDefault("elevation.workers", elevation.DefaultWorkers)
	v.SetDefault("elevation.cache_ttl", elevation.DefaultCacheTTL)
	v.SetDefault("elevation.valkey_addr", "")
}

// Load reads configuration. An empty path looks for trackconv.yaml in the
// working directory and ./configs and is fine when none exists; an explicit
// path must be readable.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("%w: read config %s: %v", track.ErrInvalidParameter, path, err)
		}
	} else {
		v.SetConfigName("trackconv")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("%w: read config: %v", track.ErrInvalidParameter, err)
			}
		}
	}

	// Environment variables: TRACKCONV_SERVER_ADDR → server.addr
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: unmarshal config: %v", track.ErrInvalidParameter, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks every section.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("%w: config validation failed: %v", track.ErrInvalidParameter, err)
	}
	return nil
}

// NewLogger builds the slog logger described by cfg.
func NewLogger(cfg LogConfig, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
