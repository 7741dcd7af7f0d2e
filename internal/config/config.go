// Package config loads gridcalc settings from defaults, an optional YAML
// file, GRIDCALC_* environment variables and command line flags, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/vogtb/go-spreadsheet/packages/gridcalc"
)

const (
	configFileName = "gridcalc"
	configFileType = "yaml"
	envPrefix      = "GRIDCALC"

	KeyServerAddr         = "server.addr"
	KeyServerReadTimeout  = "server.read_timeout"
	KeyServerWriteTimeout = "server.write_timeout"
	KeyServerStaticDir    = "server.static_dir"
	KeyLogLevel           = "log.level"
	KeyLogFormat          = "log.format"
	KeyEngineStore        = "engine.store"

	StoreMap   = "map"
	StoreChunk = "chunk"
)

// flagKeys maps command line flag names onto config keys. flags missing
// from the set handed to Load are skipped.
var flagKeys = map[string]string{
	"addr":       KeyServerAddr,
	"static-dir": KeyServerStaticDir,
	"log-level":  KeyLogLevel,
	"log-format": KeyLogFormat,
	"store":      KeyEngineStore,
}

type Config struct {
	Server ServerConfig `mapstructure:"server"`
	Log    LogConfig    `mapstructure:"log"`
	Engine EngineConfig `mapstructure:"engine"`
}

type ServerConfig struct {
	Addr         string        `mapstructure:"addr"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// StaticDir holds a built frontend. when set, unknown paths fall back
	// to its index.html.
	StaticDir string `mapstructure:"static_dir"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type EngineConfig struct {
	Store string `mapstructure:"store"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyServerAddr, ":3000")
	v.SetDefault(KeyServerReadTimeout, "10s")
	v.SetDefault(KeyServerWriteTimeout, "10s")
	v.SetDefault(KeyServerStaticDir, "")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "text")
	v.SetDefault(KeyEngineStore, StoreMap)
}

// Load builds the configuration. path names an explicit config file; when
// empty, gridcalc.yaml is looked up in the working directory and in
// $HOME/.config/gridcalc, and a missing file is not an error. flags may
// be nil.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(configFileName)
		v.SetConfigType(configFileType)
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "gridcalc"))
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that every setting holds a supported value
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Addr == "" {
		errs = append(errs, fmt.Errorf("%s must not be empty", KeyServerAddr))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %s", KeyServerReadTimeout, c.Server.ReadTimeout))
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %s", KeyServerWriteTimeout, c.Server.WriteTimeout))
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("%s must be text or json, got %q", KeyLogFormat, c.Log.Format))
	}
	switch c.Engine.Store {
	case StoreMap, StoreChunk:
	default:
		errs = append(errs, fmt.Errorf("%s must be %s or %s, got %q", KeyEngineStore, StoreMap, StoreChunk, c.Engine.Store))
	}

	if len(errs) > 0 {
		return &gridcalc.AppError{
			Code:    gridcalc.InvalidArgument,
			Message: "invalid configuration",
			Err:     errors.Join(errs...),
		}
	}
	return nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("%s: %w", KeyLogLevel, err)
	}
	return level, nil
}

// NewLogger builds the slog logger described by the log section
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	level, err := parseLevel(c.Log.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// NewStore returns an empty cell store of the given kind
func NewStore(kind string) (gridcalc.CellStore, error) {
	switch kind {
	case StoreMap:
		return gridcalc.NewMapStore(), nil
	case StoreChunk:
		return gridcalc.NewChunkStore(), nil
	}
	return nil, gridcalc.NewApplicationError(gridcalc.InvalidArgument, fmt.Sprintf("unknown store %q", kind))
}

// TableFactory builds tables with the configured store and logger
func (c *Config) TableFactory(logger *slog.Logger) func() *gridcalc.Table {
	kind := c.Engine.Store
	return func() *gridcalc.Table {
		store, err := NewStore(kind)
		if err != nil {
			store = gridcalc.NewMapStore()
		}
		return gridcalc.NewTable(gridcalc.WithStore(store), gridcalc.WithLogger(logger))
	}
}
