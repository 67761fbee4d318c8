package config

import (
	"fmt"
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

// Build modes
const (
	BuildModeBundle  = "bundle"
	BuildModeRawCopy = "raw-copy"
)

// Backend names accepted in build.backends and build.graph_backends
const (
	BackendDeno    = "deno"
	BackendEsbuild = "esbuild"
)

// Loader modes
const (
	LoaderSandbox = "sandbox"
	LoaderDeno    = "deno"
	LoaderAuto    = "auto"
)

// DefaultRawCopyFiles are the project files shipped next to raw sources
var DefaultRawCopyFiles = []string{
	"deno.json",
	"deno.jsonc",
	"deno.lock",
	"import_map.json",
}

// BuildConfig contains build pipeline settings
type BuildConfig struct {
	OutputDir     string        `mapstructure:"output_dir"`
	Mode          string        `mapstructure:"mode"`
	Backends      []string      `mapstructure:"backends"`       // Bundler fallback order
	GraphBackends []string      `mapstructure:"graph_backends"` // Module graph fallback order (raw-copy)
	NativeTimeout time.Duration `mapstructure:"native_timeout"` // 0 disables the timeout
	RawCopyFiles  []string      `mapstructure:"raw_copy_files"` // doublestar patterns relative to the project
}

// Validate validates build configuration
func (bc *BuildConfig) Validate() error {
	if bc.OutputDir == "" {
		return fmt.Errorf("output_dir cannot be empty")
	}

	if bc.Mode != BuildModeBundle && bc.Mode != BuildModeRawCopy {
		return fmt.Errorf("invalid build mode: %s (must be one of: %s, %s)", bc.Mode, BuildModeBundle, BuildModeRawCopy)
	}

	if len(bc.Backends) == 0 {
		return fmt.Errorf("at least one backend is required")
	}
	if err := validateBackends("backends", bc.Backends); err != nil {
		return err
	}

	if bc.Mode == BuildModeRawCopy {
		if len(bc.GraphBackends) == 0 {
			return fmt.Errorf("at least one graph backend is required in %s mode", BuildModeRawCopy)
		}
		if err := validateBackends("graph_backends", bc.GraphBackends); err != nil {
			return err
		}
	}

	if bc.NativeTimeout < 0 {
		return fmt.Errorf("native_timeout cannot be negative, got: %v", bc.NativeTimeout)
	}

	for _, pattern := range bc.RawCopyFiles {
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("invalid raw_copy_files pattern: %q", pattern)
		}
	}

	return nil
}

func validateBackends(key string, backends []string) error {
	seen := make(map[string]bool, len(backends))
	for _, b := range backends {
		if b != BackendDeno && b != BackendEsbuild {
			return fmt.Errorf("invalid %s entry: %s (must be one of: %s, %s)", key, b, BackendDeno, BackendEsbuild)
		}
		if seen[b] {
			return fmt.Errorf("duplicate %s entry: %s", key, b)
		}
		seen[b] = true
	}
	return nil
}
