// Package modgraph walks module import graphs to find the local source files
// a module depends on.
package modgraph

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"sort"
	"strings"
)

// ErrMissingModule is returned when the entrypoint has no entry in the graph
var ErrMissingModule = errors.New("module missing from graph")

// Import is an edge from one module to another
type Import struct {
	Path     string `json:"path"`
	External bool   `json:"external,omitempty"`
}

// Graph maps a module specifier to the modules it imports. A module with
// no entry has no imports.
type Graph map[string][]Import

// AddModule records a module with no imports if it is not yet present
func (g Graph) AddModule(spec string) {
	if _, ok := g[spec]; !ok {
		g[spec] = nil
	}
}

// AddImport records an edge from one module to another
func (g Graph) AddImport(from string, imp Import) {
	g[from] = append(g[from], imp)
}

// Set is a set of module specifiers
type Set map[string]struct{}

// Add inserts every given specifier
func (s Set) Add(specs ...string) {
	for _, spec := range specs {
		s[spec] = struct{}{}
	}
}

// Union inserts every member of other
func (s Set) Union(other Set) {
	for spec := range other {
		s[spec] = struct{}{}
	}
}

// Has reports membership
func (s Set) Has(spec string) bool {
	_, ok := s[spec]
	return ok
}

// Sorted returns the members in lexical order
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s))
	for spec := range s {
		out = append(out, spec)
	}
	sort.Strings(out)
	return out
}

// CollectLocalFiles returns every local module reachable from entry,
// including entry. Edges marked external and specifiers with a URL scheme
// other than file: are not followed. Each module is visited once, so
// cycles and diamonds terminate.
func CollectLocalFiles(entry string, graph Graph) (Set, error) {
	if _, ok := graph[entry]; !ok {
		return nil, fmt.Errorf("%w: entrypoint %s", ErrMissingModule, entry)
	}

	visited := Set{}
	stack := []string{entry}
	for len(stack) > 0 {
		spec := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited.Has(spec) {
			continue
		}

		visited.Add(spec)

		for _, imp := range graph[spec] {
			if imp.External || IsRemote(imp.Path) || visited.Has(imp.Path) {
				continue
			}
			stack = append(stack, imp.Path)
		}
	}

	return visited, nil
}

// IsRemote reports whether spec carries a URL scheme other than file:.
// Windows drive letters are not schemes.
func IsRemote(spec string) bool {
	scheme, _, ok := strings.Cut(spec, ":")
	if !ok || len(scheme) < 2 {
		return false
	}
	for i, r := range scheme {
		isAlpha := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
		if !isAlpha && (i == 0 || !(r >= '0' && r <= '9' || r == '+' || r == '-' || r == '.')) {
			return false
		}
	}
	return !strings.EqualFold(scheme, "file")
}

// LocalPath converts a file: URL specifier to a filesystem path. Other
// specifiers are returned unchanged.
func LocalPath(spec string) (string, error) {
	if !strings.HasPrefix(spec, "file:") {
		return spec, nil
	}
	u, err := url.Parse(spec)
	if err != nil {
		return "", fmt.Errorf("invalid file URL %s: %w", spec, err)
	}
	return filepath.FromSlash(u.Path), nil
}
