package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Config represents the hook configuration
type Config struct {
	Deno    DenoConfig    `mapstructure:"deno"`
	Build   BuildConfig   `mapstructure:"build"`
	Esbuild EsbuildConfig `mapstructure:"esbuild"`
	Loader  LoaderConfig  `mapstructure:"loader"`
	Log     LogConfig     `mapstructure:"log"`
	Hooks   HooksConfig   `mapstructure:"hooks"`
	Doctor  DoctorConfig  `mapstructure:"doctor"`
	Debug   bool          `mapstructure:"debug"`
}

// DenoConfig locates the deno toolchain
type DenoConfig struct {
	Path       string `mapstructure:"path"`        // Explicit deno executable; empty means search PATH
	ConfigFile string `mapstructure:"config_file"` // deno.json(c) passed to bundle/info; empty means auto-detect
}

// EsbuildConfig contains settings for the esbuild fallback bundler
type EsbuildConfig struct {
	Target        string        `mapstructure:"target"`
	Minify        bool          `mapstructure:"minify"`
	Sourcemap     string        `mapstructure:"sourcemap"`      // inline, external, none
	RemoteImports bool          `mapstructure:"remote_imports"` // Fetch and inline https:// imports
	FetchTimeout  time.Duration `mapstructure:"fetch_timeout"`
	FetchRate     float64       `mapstructure:"fetch_rate"` // Remote requests per second; 0 means unlimited
	FetchBurst    int           `mapstructure:"fetch_burst"`
	CacheSize     int           `mapstructure:"cache_size"` // Remote modules kept in memory
}

// LoaderConfig controls how user modules are evaluated during validation
type LoaderConfig struct {
	Mode    string        `mapstructure:"mode"` // sandbox, deno, auto
	Timeout time.Duration `mapstructure:"timeout"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level   string `mapstructure:"level"`
	Console bool   `mapstructure:"console"` // Mirror log events to stderr
}

// HooksConfig contains values advertised by get-hooks
type HooksConfig struct {
	RuntimeVersion string `mapstructure:"runtime_version"`
	Executable     string `mapstructure:"executable"` // Command the parent runs for each hook; empty means this binary
}

// DoctorConfig contains doctor settings
type DoctorConfig struct {
	MinimumDeno string `mapstructure:"minimum_deno"`
}

// Load loads configuration for a project directory from the optional
// denohooks.yaml file, DENOHOOKS_* environment variables and defaults.
func Load(v *viper.Viper, projectDir string) (*Config, error) {
	// Load .env file if it exists (for local development)
	if err := loadEnvFile(projectDir); err != nil {
		log.Debug().Err(err).Msg("No .env file loaded")
	}

	if v.ConfigFileUsed() == "" {
		v.SetConfigName("denohooks")
		v.SetConfigType("yaml")
		v.AddConfigPath(projectDir)
		v.AddConfigPath(filepath.Join(projectDir, ".denohooks"))
	}

	SetDefaults(v)

	v.AutomaticEnv()
	v.SetEnvPrefix("DENOHOOKS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		log.Debug().Msg("No config file found, using environment variables and defaults")
	} else {
		log.Debug().Str("file", v.ConfigFileUsed()).Msg("Config file loaded")
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// loadEnvFile loads environment variables from a .env file in the project
func loadEnvFile(projectDir string) error {
	locations := []string{
		filepath.Join(projectDir, ".env"),
		filepath.Join(projectDir, ".env.local"),
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			if err := godotenv.Load(location); err != nil {
				return fmt.Errorf("error loading .env file from %s: %w", location, err)
			}
			log.Debug().Str("file", location).Msg(".env file loaded")
			return nil
		}
	}

	return fmt.Errorf("no .env file found")
}

// SetDefaults sets default configuration values
func SetDefaults(v *viper.Viper) {
	v.SetDefault("deno.path", "")
	v.SetDefault("deno.config_file", "")

	v.SetDefault("build.output_dir", "dist")
	v.SetDefault("build.mode", BuildModeBundle)
	v.SetDefault("build.backends", []string{BackendDeno, BackendEsbuild})
	v.SetDefault("build.graph_backends", []string{BackendDeno, BackendEsbuild})
	v.SetDefault("build.native_timeout", "0s") // no timeout
	v.SetDefault("build.raw_copy_files", DefaultRawCopyFiles)

	v.SetDefault("esbuild.target", "esnext")
	v.SetDefault("esbuild.minify", true)
	v.SetDefault("esbuild.sourcemap", "inline")
	v.SetDefault("esbuild.remote_imports", true)
	v.SetDefault("esbuild.fetch_timeout", "30s")
	v.SetDefault("esbuild.fetch_rate", 0)
	v.SetDefault("esbuild.fetch_burst", 4)
	v.SetDefault("esbuild.cache_size", 512)

	v.SetDefault("loader.mode", LoaderSandbox)
	v.SetDefault("loader.timeout", "10s")

	v.SetDefault("log.level", "warn")
	v.SetDefault("log.console", false)

	v.SetDefault("hooks.runtime_version", "0.6.0")
	v.SetDefault("hooks.executable", "")

	v.SetDefault("doctor.minimum_deno", "1.20.5")

	v.SetDefault("debug", false)
}

// Default returns the configuration produced by defaults alone
func Default() *Config {
	v := viper.New()
	SetDefaults(v)
	var config Config
	_ = v.Unmarshal(&config)
	return &config
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if err := c.Build.Validate(); err != nil {
		return fmt.Errorf("build configuration error: %w", err)
	}

	if err := c.Esbuild.Validate(); err != nil {
		return fmt.Errorf("esbuild configuration error: %w", err)
	}

	if err := c.Loader.Validate(); err != nil {
		return fmt.Errorf("loader configuration error: %w", err)
	}

	if c.Doctor.MinimumDeno == "" {
		return fmt.Errorf("doctor minimum_deno cannot be empty")
	}

	return nil
}

// Validate validates esbuild configuration
func (ec *EsbuildConfig) Validate() error {
	if ec.Target == "" {
		return fmt.Errorf("target cannot be empty")
	}

	switch ec.Sourcemap {
	case "inline", "external", "none", "":
	default:
		return fmt.Errorf("invalid sourcemap: %s (must be one of: inline, external, none)", ec.Sourcemap)
	}

	if ec.FetchTimeout < 0 {
		return fmt.Errorf("fetch_timeout cannot be negative, got: %v", ec.FetchTimeout)
	}

	if ec.FetchRate < 0 {
		return fmt.Errorf("fetch_rate cannot be negative, got: %v", ec.FetchRate)
	}

	if ec.CacheSize <= 0 {
		return fmt.Errorf("cache_size must be positive, got: %d", ec.CacheSize)
	}

	return nil
}

// Validate validates loader configuration
func (lc *LoaderConfig) Validate() error {
	switch lc.Mode {
	case LoaderSandbox, LoaderDeno, LoaderAuto:
	default:
		return fmt.Errorf("invalid loader mode: %s (must be one of: %s, %s, %s)", lc.Mode, LoaderSandbox, LoaderDeno, LoaderAuto)
	}

	if lc.Timeout < 0 {
		return fmt.Errorf("timeout cannot be negative, got: %v", lc.Timeout)
	}

	return nil
}
