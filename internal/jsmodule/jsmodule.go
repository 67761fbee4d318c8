// Package jsmodule inspects the default export of JavaScript and TypeScript modules.
package jsmodule

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrLoad is wrapped by every failure to compile or evaluate a module
	ErrLoad = errors.New("failed to load module")
	// ErrUnresolved is returned when a default export value comes from an
	// import that was replaced by a stub instead of being loaded
	ErrUnresolved = errors.New("default export depends on a module that was not loaded (enable esbuild.remote_imports or set loader.mode to deno)")
	// ErrTopLevelAwait is returned when the sandbox cannot compile a module
	// that uses top-level await
	ErrTopLevelAwait = errors.New("top-level await is not supported by the sandbox loader (set loader.mode to deno)")
)

// Kind is the typeof of a default export
type Kind string

const (
	KindFunction  Kind = "function"
	KindObject    Kind = "object"
	KindString    Kind = "string"
	KindNumber    Kind = "number"
	KindBoolean   Kind = "boolean"
	KindBigInt    Kind = "bigint"
	KindSymbol    Kind = "symbol"
	KindUndefined Kind = "undefined"
	KindNull      Kind = "null"
)

// Export describes a module's default export
type Export struct {
	HasDefault bool            `json:"has_default"`
	Kind       Kind            `json:"kind"`
	Value      json.RawMessage `json:"value,omitempty"` // JSON form, when serialisable
	// Stubbed is set when the default export itself is a stub
	Stubbed bool `json:"stubbed,omitempty"`
	// Unresolved is the first key of Value whose value was a stub
	Unresolved string `json:"unresolved,omitempty"`
}

// Resolved returns ErrUnresolved when any part of the default export was
// produced by a stubbed import
func (e *Export) Resolved() error {
	switch {
	case e.Stubbed:
		return ErrUnresolved
	case e.Unresolved != "":
		return fmt.Errorf("%w: value of %q", ErrUnresolved, e.Unresolved)
	}
	return nil
}

// IsCallable reports whether the default export can be invoked
func (e *Export) IsCallable() bool {
	return e.HasDefault && e.Kind == KindFunction
}

// IsObject reports whether the default export is a non-null object
func (e *Export) IsObject() bool {
	return e.HasDefault && e.Kind == KindObject
}

// Decode unmarshals the JSON form of the default export into v
func (e *Export) Decode(v any) error {
	if len(e.Value) == 0 {
		return fmt.Errorf("default export of kind %s has no JSON representation", e.Kind)
	}
	return json.Unmarshal(e.Value, v)
}

// Inspector loads a module and describes its default export
type Inspector interface {
	Inspect(ctx context.Context, path string) (*Export, error)
}

// LoadError carries the diagnostics of a module that could not be loaded
type LoadError struct {
	Path   string
	Detail string
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrLoad.Error(), e.Path, e.Detail)
}

func (e *LoadError) Is(target error) bool { return target == ErrLoad }
