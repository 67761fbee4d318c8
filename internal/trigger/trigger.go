// Package trigger loads trigger definition files for the get-trigger hook.
package trigger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/denohooks/denohooks/internal/jsmodule"
)

var (
	ErrNoSource  = errors.New("A source path needs to be defined")
	ErrNotFound  = errors.New("Trigger Definition file cannot be found")
	ErrNotAFile  = errors.New("The specified source is not a valid file.")
	ErrNotObject = errors.New("default export is not an object!")

	// ErrNotSerializable is returned for objects JSON cannot represent, such as cyclic ones
	ErrNotSerializable = errors.New("default export cannot be serialised to JSON")
)

// Loader reads trigger definitions
type Loader struct {
	inspector  jsmodule.Inspector
	workingDir string
}

// NewLoader creates a loader. Relative sources resolve against workingDir.
func NewLoader(inspector jsmodule.Inspector, workingDir string) *Loader {
	return &Loader{inspector: inspector, workingDir: workingDir}
}

// Load returns the trigger definition at source as JSON. JSON and YAML files
// are read directly; any other file is a module whose default export must
// be an object.
func (l *Loader) Load(ctx context.Context, source string) (json.RawMessage, error) {
	if source == "" {
		return nil, ErrNoSource
	}

	path := source
	if !filepath.IsAbs(path) {
		path = filepath.Join(l.workingDir, path)
	}

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if !info.Mode().IsRegular() {
		return nil, ErrNotAFile
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return readJSON(path)
	case ".yaml", ".yml":
		return readYAML(path)
	}

	export, err := l.inspector.Inspect(ctx, path)
	if err != nil {
		return nil, err
	}
	if err := export.Resolved(); err != nil {
		return nil, fmt.Errorf("Trigger file: %s %w", path, err)
	}
	if !export.IsObject() {
		return nil, fmt.Errorf("Trigger file: %s %w", path, ErrNotObject)
	}
	if len(export.Value) == 0 {
		return nil, fmt.Errorf("Trigger file: %s %w", path, ErrNotSerializable)
	}
	return export.Value, nil
}

func readJSON(path string) (json.RawMessage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("trigger file %s is not valid JSON", path)
	}
	return compact(data)
}

func readYAML(path string) (json.RawMessage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse trigger file %s: %w", path, err)
	}
	if _, ok := doc.(map[string]any); !ok {
		return nil, fmt.Errorf("Trigger file: %s %w", path, ErrNotObject)
	}

	out, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode trigger file %s: %w", path, err)
	}
	return out, nil
}

func compact(data []byte) (json.RawMessage, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
