package deno

import (
	"context"
	"encoding/json"
	"fmt"
)

// Info is the output of `deno info --json`
type Info struct {
	Roots     []string          `json:"roots"`
	Modules   []InfoModule      `json:"modules"`
	Redirects map[string]string `json:"redirects"`
}

// InfoModule is one module in the dependency graph
type InfoModule struct {
	Kind         string           `json:"kind"`
	Specifier    string           `json:"specifier"`
	Local        string           `json:"local,omitempty"`
	Error        string           `json:"error,omitempty"`
	Dependencies []InfoDependency `json:"dependencies,omitempty"`
}

// InfoDependency is an import edge of a module
type InfoDependency struct {
	Specifier string        `json:"specifier"`
	Code      *InfoResolved `json:"code,omitempty"`
	Type      *InfoResolved `json:"type,omitempty"`
	NpmPkg    string        `json:"npmPackage,omitempty"`
}

// InfoResolved is the resolution of a dependency specifier
type InfoResolved struct {
	Specifier string `json:"specifier"`
	Error     string `json:"error,omitempty"`
}

// Info runs `deno info --json --no-remote` for an entrypoint. Remote
// modules are not fetched and appear in the graph with an error.
func (t *Toolchain) Info(ctx context.Context, dir, entrypoint, configPath string) (*Info, error) {
	args := []string{"info", "--json", "--no-remote"}
	if configPath != "" {
		args = append(args, "--config", configPath)
	}
	args = append(args, entrypoint)

	stdout, _, err := t.runner.Run(ctx, dir, args...)
	if err != nil {
		return nil, err
	}

	var info Info
	if err := json.Unmarshal(stdout, &info); err != nil {
		return nil, fmt.Errorf("failed to parse deno info output: %w", err)
	}
	return &info, nil
}
