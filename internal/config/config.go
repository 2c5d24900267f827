// Package config loads erpseed settings from defaults, an optional YAML
// file, the environment and command-line flags, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// FileName is the config file looked up in the working directory.
	FileName = "erpseed.yaml"

	// EnvPrefix prefixes every environment override (ERPSEED_SITE).
	EnvPrefix = "ERPSEED"

	// VerifactuEnv is also honoured for the webhook key.
	VerifactuEnv = "VERIFACTU_API_KEY"
)

// Config is the resolved configuration.
type Config struct {
	Site           string          `mapstructure:"site"`
	SitesDir       string          `mapstructure:"sites_dir"`
	DB             string          `mapstructure:"db"`
	SchemaDir      string          `mapstructure:"schema_dir"`
	AbortOnFailure bool            `mapstructure:"abort_on_failure"`
	Verifactu      VerifactuConfig `mapstructure:"verifactu"`

	// File is the config file that was read, empty when none was.
	File string `mapstructure:"-"`
}

// VerifactuConfig holds the invoice webhook settings.
type VerifactuConfig struct {
	APIKey string `mapstructure:"api_key"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Site:     "galaxy.local",
		SitesDir: "sites",
	}
}

// DBPath returns the SQLite file for the site: the explicit db setting,
// or <sites_dir>/<site>.db. Validate keeps the latter inside sites_dir.
func (c Config) DBPath() string {
	if c.DB != "" {
		return c.DB
	}
	return filepath.Join(c.SitesDir, c.Site+".db")
}

// flagKeys maps command-line flags to config keys.
var flagKeys = map[string]string{
	"site":              "site",
	"sites-dir":         "sites_dir",
	"db":                "db",
	"schema-dir":        "schema_dir",
	"abort-on-failure":  "abort_on_failure",
	"verifactu-api-key": "verifactu.api_key",
}

// LoadOptions controls where configuration is read from.
type LoadOptions struct {
	// File is an explicit config file. It must exist.
	File string

	// Dir is searched for FileName when File is empty. Defaults to ".".
	Dir string

	// Flags overrides every other source for flags the user set.
	Flags *pflag.FlagSet
}

// Load resolves the configuration.
func Load(opts LoadOptions) (*Config, error) {
	v := viper.New()

	defaults := Default()
	v.SetDefault("site", defaults.Site)
	v.SetDefault("sites_dir", defaults.SitesDir)
	v.SetDefault("db", defaults.DB)
	v.SetDefault("schema_dir", defaults.SchemaDir)
	v.SetDefault("abort_on_failure", defaults.AbortOnFailure)
	v.SetDefault("verifactu.api_key", defaults.Verifactu.APIKey)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("verifactu.api_key", EnvPrefix+"_VERIFACTU_API_KEY", VerifactuEnv); err != nil {
		return nil, fmt.Errorf("failed to bind environment: %w", err)
	}

	file, err := configFile(opts)
	if err != nil {
		return nil, err
	}
	if file != "" {
		v.SetConfigFile(file)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", file, err)
		}
	}

	if opts.Flags != nil {
		for name, key := range flagKeys {
			if f := opts.Flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag --%s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.UnmarshalExact(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.File = file

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func configFile(opts LoadOptions) (string, error) {
	if opts.File != "" {
		if _, err := os.Stat(opts.File); err != nil {
			return "", fmt.Errorf("config file not found: %s", opts.File)
		}
		return opts.File, nil
	}

	dir := opts.Dir
	if dir == "" {
		dir = "."
	}
	path := filepath.Join(dir, FileName)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("failed to stat %s: %w", path, err)
	}
	return path, nil
}

// Validate checks settings that cannot be defaulted.
func (c Config) Validate() error {
	if c.Site == "" {
		return errors.New("site is required")
	}
	if strings.ContainsAny(c.Site, `/\`) || strings.Contains(c.Site, "..") || c.Site == "." {
		return fmt.Errorf("invalid site name %q", c.Site)
	}
	if c.DB == "" && c.SitesDir == "" {
		return errors.New("sites_dir is required when db is not set")
	}
	return nil
}
