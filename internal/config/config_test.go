package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "dist", cfg.Build.OutputDir)
	assert.Equal(t, BuildModeBundle, cfg.Build.Mode)
	assert.Equal(t, []string{BackendDeno, BackendEsbuild}, cfg.Build.Backends)
	assert.Equal(t, time.Duration(0), cfg.Build.NativeTimeout)
	assert.Equal(t, DefaultRawCopyFiles, cfg.Build.RawCopyFiles)
	assert.Equal(t, "esnext", cfg.Esbuild.Target)
	assert.True(t, cfg.Esbuild.Minify)
	assert.Equal(t, 30*time.Second, cfg.Esbuild.FetchTimeout)
	assert.Zero(t, cfg.Esbuild.FetchRate)
	assert.Equal(t, 4, cfg.Esbuild.FetchBurst)
	assert.Equal(t, LoaderSandbox, cfg.Loader.Mode)
	assert.Equal(t, "1.20.5", cfg.Doctor.MinimumDeno)
	require.NoError(t, cfg.Validate())
}

func TestLoad(t *testing.T) {
	t.Run("defaults without config file", func(t *testing.T) {
		dir := t.TempDir()

		cfg, err := Load(viper.New(), dir)
		require.NoError(t, err)
		assert.Equal(t, "dist", cfg.Build.OutputDir)
	})

	t.Run("reads denohooks.yaml", func(t *testing.T) {
		dir := t.TempDir()
		content := "build:\n  mode: raw-copy\n  backends: [esbuild]\nloader:\n  timeout: 2s\n"
		require.NoError(t, os.WriteFile(filepath.Join(dir, "denohooks.yaml"), []byte(content), 0o600))

		cfg, err := Load(viper.New(), dir)
		require.NoError(t, err)
		assert.Equal(t, BuildModeRawCopy, cfg.Build.Mode)
		assert.Equal(t, []string{BackendEsbuild}, cfg.Build.Backends)
		assert.Equal(t, 2*time.Second, cfg.Loader.Timeout)
	})

	t.Run("environment overrides", func(t *testing.T) {
		dir := t.TempDir()
		t.Setenv("DENOHOOKS_ESBUILD_TARGET", "es2020")

		cfg, err := Load(viper.New(), dir)
		require.NoError(t, err)
		assert.Equal(t, "es2020", cfg.Esbuild.Target)
	})

	t.Run("invalid config is rejected", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "denohooks.yaml"), []byte("build:\n  mode: zip\n"), 0o600))

		_, err := Load(viper.New(), dir)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid build mode")
	})
}

func TestBuildConfig_Validate(t *testing.T) {
	valid := func() BuildConfig {
		return BuildConfig{
			OutputDir:     "dist",
			Mode:          BuildModeBundle,
			Backends:      []string{BackendDeno, BackendEsbuild},
			GraphBackends: []string{BackendDeno},
			RawCopyFiles:  []string{"deno.json", "**/*.lock"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*BuildConfig)
		wantErr bool
		errMsg  string
	}{
		{
			name:    "valid config",
			mutate:  func(*BuildConfig) {},
			wantErr: false,
		},
		{
			name:    "empty output dir",
			mutate:  func(c *BuildConfig) { c.OutputDir = "" },
			wantErr: true,
			errMsg:  "output_dir cannot be empty",
		},
		{
			name:    "unknown mode",
			mutate:  func(c *BuildConfig) { c.Mode = "zip" },
			wantErr: true,
			errMsg:  "invalid build mode",
		},
		{
			name:    "no backends",
			mutate:  func(c *BuildConfig) { c.Backends = nil },
			wantErr: true,
			errMsg:  "at least one backend is required",
		},
		{
			name:    "unknown backend",
			mutate:  func(c *BuildConfig) { c.Backends = []string{"rollup"} },
			wantErr: true,
			errMsg:  "invalid backends entry: rollup",
		},
		{
			name:    "duplicate backend",
			mutate:  func(c *BuildConfig) { c.Backends = []string{BackendDeno, BackendDeno} },
			wantErr: true,
			errMsg:  "duplicate backends entry",
		},
		{
			name: "raw copy needs graph backends",
			mutate: func(c *BuildConfig) {
				c.Mode = BuildModeRawCopy
				c.GraphBackends = nil
			},
			wantErr: true,
			errMsg:  "at least one graph backend is required",
		},
		{
			name:    "negative timeout",
			mutate:  func(c *BuildConfig) { c.NativeTimeout = -time.Second },
			wantErr: true,
			errMsg:  "native_timeout cannot be negative",
		},
		{
			name:    "bad glob",
			mutate:  func(c *BuildConfig) { c.RawCopyFiles = []string{"[unclosed"} },
			wantErr: true,
			errMsg:  "invalid raw_copy_files pattern",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.errMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestEsbuildConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  EsbuildConfig
		wantErr bool
		errMsg  string
	}{
		{
			name:   "valid config",
			config: EsbuildConfig{Target: "esnext", Sourcemap: "inline", CacheSize: 10},
		},
		{
			name:    "empty target",
			config:  EsbuildConfig{Sourcemap: "inline", CacheSize: 10},
			wantErr: true,
			errMsg:  "target cannot be empty",
		},
		{
			name:    "bad sourcemap",
			config:  EsbuildConfig{Target: "esnext", Sourcemap: "linked", CacheSize: 10},
			wantErr: true,
			errMsg:  "invalid sourcemap",
		},
		{
			name:    "negative fetch rate",
			config:  EsbuildConfig{Target: "esnext", Sourcemap: "none", FetchRate: -1, CacheSize: 10},
			wantErr: true,
			errMsg:  "fetch_rate cannot be negative",
		},
		{
			name:    "zero cache",
			config:  EsbuildConfig{Target: "esnext", Sourcemap: "none"},
			wantErr: true,
			errMsg:  "cache_size must be positive",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.config.Validate()
			if tc.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.errMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoaderConfig_Validate(t *testing.T) {
	assert.NoError(t, (&LoaderConfig{Mode: LoaderAuto}).Validate())
	assert.NoError(t, (&LoaderConfig{Mode: LoaderDeno, Timeout: time.Second}).Validate())

	err := (&LoaderConfig{Mode: "node"}).Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid loader mode")

	err = (&LoaderConfig{Mode: LoaderSandbox, Timeout: -1}).Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout cannot be negative")
}
