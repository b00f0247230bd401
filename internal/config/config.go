// Package config loads runtime settings for the dynaql tools.
//
// Sources, highest precedence first:
//
//	command-line flags (only when set explicitly)
//	DYNAQL_* environment variables (DYNAQL_META_TABLE -> meta_table)
//	config file (YAML, TOML or JSON by extension)
//	built-in defaults
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/roach88/dynaql/internal/logging"
)

// EnvPrefix prefixes every environment variable the loader reads.
const EnvPrefix = "DYNAQL"

// Defaults.
const (
	DefaultRegion    = "us-east-1"
	DefaultMetaTable = "META"
	DefaultPageSize  = 100
	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"
)

// Config is the resolved runtime configuration.
type Config struct {
	// Region is the remote store's region.
	Region string `mapstructure:"region"`

	// MetaTable names the table that describes every other table.
	MetaTable string `mapstructure:"meta_table"`

	// Endpoint overrides the remote endpoint, e.g. http://localhost:8031 for
	// a local emulator. Static dummy credentials are used when it is set.
	Endpoint string `mapstructure:"endpoint"`

	// LocalPath selects the embedded SQLite store instead of a remote one.
	LocalPath string `mapstructure:"local_path"`

	// PageSize caps items evaluated per request.
	PageSize int `mapstructure:"page_size"`

	// MaxRPS paces read requests per second across a command. Zero is
	// unlimited.
	MaxRPS float64 `mapstructure:"max_rps"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

var keys = []string{"region", "meta_table", "endpoint", "local_path", "page_size", "max_rps", "log_level", "log_format"}

// Load resolves the configuration. path may be empty; a named file that
// cannot be read is an error. flags may be nil. Flag names map onto keys with
// dashes replaced by underscores (--meta-table -> meta_table).
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	v.SetDefault("region", DefaultRegion)
	v.SetDefault("meta_table", DefaultMetaTable)
	v.SetDefault("endpoint", "")
	v.SetDefault("local_path", "")
	v.SetDefault("page_size", DefaultPageSize)
	v.SetDefault("max_rps", 0)
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("log_format", DefaultLogFormat)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if flags != nil {
		for _, key := range keys {
			f := flags.Lookup(strings.ReplaceAll(key, "_", "-"))
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("bind flag --%s: %w", f.Name, err)
			}
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

// Validate rejects settings no command can run with.
func (c *Config) Validate() error {
	var errs []error
	if c.MetaTable == "" {
		errs = append(errs, errors.New("meta_table must not be empty"))
	}
	if c.PageSize <= 0 {
		errs = append(errs, fmt.Errorf("page_size must be positive, got %d", c.PageSize))
	}
	if c.MaxRPS < 0 {
		errs = append(errs, fmt.Errorf("max_rps must not be negative, got %g", c.MaxRPS))
	}
	if c.LocalPath == "" && c.Region == "" {
		errs = append(errs, errors.New("region is required for a remote store"))
	}
	if c.LocalPath != "" && c.Endpoint != "" {
		errs = append(errs, errors.New("endpoint and local_path are mutually exclusive"))
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("log_format must be text or json, got %q", c.LogFormat))
	}
	return errors.Join(errs...)
}

// Local reports whether the embedded store is selected.
func (c *Config) Local() bool {
	return c.LocalPath != ""
}
