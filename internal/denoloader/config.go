// Package denoloader provides esbuild plugins that resolve modules the way
// deno does: import maps from deno.json, remote https modules, and npm:,
// jsr: and node: specifiers left for the runtime.
package denoloader

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/tailscale/hujson"
)

// ConfigNames are the deno config file names, in lookup order
var ConfigNames = []string{"deno.json", "deno.jsonc"}

// FindConfig returns the deno config file in dir, or "" if there is none
func FindConfig(dir string) (string, error) {
	for _, name := range ConfigNames {
		path := filepath.Join(dir, name)
		info, err := os.Stat(path)
		if err == nil && info.Mode().IsRegular() {
			return path, nil
		}
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return "", err
		}
	}
	return "", nil
}

// denoConfig is the subset of deno.json the loader reads
type denoConfig struct {
	Imports   map[string]string            `json:"imports"`
	Scopes    map[string]map[string]string `json:"scopes"`
	ImportMap string                       `json:"importMap"`
}

// LoadImportMap reads the import map declared by a deno config file, either
// inline through "imports"/"scopes" or in a separate file named by
// "importMap". Comments and trailing commas are accepted.
func LoadImportMap(configPath string) (*ImportMap, error) {
	cfg, err := readJSONC[denoConfig](configPath)
	if err != nil {
		return nil, err
	}

	base := dirURL(configPath)
	if cfg.ImportMap == "" {
		return NewImportMap(base, cfg.Imports, cfg.Scopes), nil
	}

	mapPath := cfg.ImportMap
	if !filepath.IsAbs(mapPath) {
		mapPath = filepath.Join(filepath.Dir(configPath), filepath.FromSlash(mapPath))
	}
	external, err := readJSONC[denoConfig](mapPath)
	if err != nil {
		return nil, fmt.Errorf("reading import map referenced by %s: %w", configPath, err)
	}

	imports := external.Imports
	for k, v := range cfg.Imports {
		if imports == nil {
			imports = map[string]string{}
		}
		imports[k] = v
	}
	return NewImportMap(dirURL(mapPath), imports, external.Scopes), nil
}

func readJSONC[T any](path string) (*T, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	standard, err := hujson.Standardize(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	var out T
	if err := json.Unmarshal(standard, &out); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &out, nil
}

func dirURL(path string) *url.URL {
	abs, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		abs = filepath.Dir(path)
	}
	return fileURL(abs + string(filepath.Separator))
}

func fileURL(path string) *url.URL {
	p := filepath.ToSlash(path)
	if len(p) == 0 || p[0] != '/' {
		p = "/" + p
	}
	return &url.URL{Scheme: "file", Path: p}
}
