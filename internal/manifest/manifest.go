// Package manifest assembles the app manifest from its declaration files.
package manifest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/denohooks/denohooks/internal/jsmodule"
)

// ErrNotFound is returned when no manifest declaration file exists
var ErrNotFound = errors.New("Could not find a manifest.json, manifest.ts or manifest.js file")

// Declaration file names. The importable forms are tried in order and the
// first one found is merged over manifest.json.
const (
	JSONFile = "manifest.json"
	TSFile   = "manifest.ts"
	JSFile   = "manifest.js"
)

// TypeAPI marks functions implemented outside the project
const TypeAPI = "API"

// Manifest is the app manifest as a generic JSON object
type Manifest map[string]any

// Function is a view over one entry of the manifest's functions map
type Function struct {
	ID         string
	Type       string
	SourceFile string
	Definition map[string]any
}

// IsAPI reports whether the function has no local source
func (f Function) IsAPI() bool {
	return f.Type == TypeAPI
}

// Functions returns the manifest's function definitions sorted by ID
func (m Manifest) Functions() ([]Function, error) {
	raw, ok := m["functions"]
	if !ok || raw == nil {
		return nil, nil
	}
	defs, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("manifest functions must be an object, got %T", raw)
	}

	ids := make([]string, 0, len(defs))
	for id := range defs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	fns := make([]Function, 0, len(ids))
	for _, id := range ids {
		def, ok := defs[id].(map[string]any)
		if !ok {
			return nil, fmt.Errorf("function %q definition must be an object, got %T", id, defs[id])
		}
		fn := Function{ID: id, Definition: def}
		fn.Type, _ = def["type"].(string)
		fn.SourceFile, _ = def["source_file"].(string)
		fns = append(fns, fn)
	}
	return fns, nil
}

// Assembler builds manifests from a project directory
type Assembler struct {
	inspector jsmodule.Inspector
}

// NewAssembler creates an assembler that loads manifest.ts and manifest.js
// through inspector
func NewAssembler(inspector jsmodule.Inspector) *Assembler {
	return &Assembler{inspector: inspector}
}

// Assemble reads manifest.json as the base layer and deep-merges the default
// export of manifest.ts, or else manifest.js, over it.
func (a *Assembler) Assemble(ctx context.Context, projectRoot string) (Manifest, error) {
	found := false
	merged := map[string]any{}

	jsonPath := filepath.Join(projectRoot, JSONFile)
	if ok, err := isFile(jsonPath); err != nil {
		return nil, err
	} else if ok {
		base, err := readJSON(jsonPath)
		if err != nil {
			return nil, err
		}
		merged = DeepMerge(merged, base)
		found = true
		log.Debug().Str("file", jsonPath).Msg("Loaded manifest.json")
	}

	for _, name := range []string{TSFile, JSFile} {
		path := filepath.Join(projectRoot, name)
		ok, err := isFile(path)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}

		layer, err := a.readModule(ctx, path)
		if err != nil {
			return nil, err
		}
		merged = DeepMerge(merged, layer)
		found = true
		log.Debug().Str("file", path).Msg("Loaded manifest module")
		break
	}

	if !found {
		return nil, ErrNotFound
	}
	return Manifest(merged), nil
}

func (a *Assembler) readModule(ctx context.Context, path string) (map[string]any, error) {
	export, err := a.inspector.Inspect(ctx, path)
	if err != nil {
		return nil, err
	}
	if err := export.Resolved(); err != nil {
		return nil, fmt.Errorf("manifest file: %s: %w", path, err)
	}
	if !export.HasDefault || export.Kind == jsmodule.KindUndefined || export.Kind == jsmodule.KindNull {
		return map[string]any{}, nil
	}
	if !export.IsObject() {
		return nil, fmt.Errorf("manifest file: %s default export is not an object", path)
	}

	var layer map[string]any
	if err := export.Decode(&layer); err != nil {
		return nil, fmt.Errorf("manifest file: %s: %w", path, err)
	}
	return layer, nil
}

// Prune removes tooling-only fields from every function definition. The
// manifest is modified in place and returned.
func Prune(m Manifest) Manifest {
	defs, ok := m["functions"].(map[string]any)
	if !ok {
		return m
	}
	for _, raw := range defs {
		if def, ok := raw.(map[string]any); ok {
			delete(def, "source_file")
		}
	}
	return m
}

// Marshal renders the manifest as 2-space indented JSON with a trailing newline
func Marshal(m Manifest) ([]byte, error) {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

func readJSON(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if out == nil {
		out = map[string]any{}
	}
	return out, nil
}

func isFile(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return info.Mode().IsRegular(), nil
}
