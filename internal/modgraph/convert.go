package modgraph

import (
	"path/filepath"

	"github.com/denohooks/denohooks/internal/deno"
)

// nonLocalKinds are deno info module kinds that never map to project files
var nonLocalKinds = map[string]bool{
	"npm":      true,
	"node":     true,
	"external": true,
}

// FromDenoInfo builds a graph from `deno info --json` output. Module and
// edge keys are the resolved specifiers deno reports.
func FromDenoInfo(info *deno.Info) Graph {
	graph := Graph{}
	kinds := make(map[string]string, len(info.Modules))
	for _, m := range info.Modules {
		kinds[m.Specifier] = m.Kind
	}

	for _, m := range info.Modules {
		if m.Error != "" || nonLocalKinds[m.Kind] {
			continue
		}
		graph.AddModule(m.Specifier)
		for _, dep := range m.Dependencies {
			if dep.Code == nil || dep.Code.Specifier == "" {
				// type-only import
				continue
			}
			target := resolveRedirect(info.Redirects, dep.Code.Specifier)
			graph.AddImport(m.Specifier, Import{
				Path:     target,
				External: dep.NpmPkg != "" || nonLocalKinds[kinds[target]],
			})
		}
	}
	return graph
}

func resolveRedirect(redirects map[string]string, spec string) string {
	for i := 0; i < 10; i++ {
		next, ok := redirects[spec]
		if !ok {
			return spec
		}
		spec = next
	}
	return spec
}

// MetafileInput mirrors the inputs section of an esbuild metafile
type MetafileInput struct {
	Imports []MetafileImport `json:"imports"`
}

// MetafileImport mirrors an import record of an esbuild metafile
type MetafileImport struct {
	Path     string `json:"path"`
	External bool   `json:"external,omitempty"`
}

// FromMetafile builds a graph from the inputs of an esbuild metafile.
// Input paths are relative to workDir and are made absolute; namespaced
// inputs such as remote:https://... keep their specifier.
func FromMetafile(inputs map[string]MetafileInput, workDir string) Graph {
	graph := Graph{}
	normalize := func(p string) string {
		if IsRemote(p) || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(workDir, filepath.FromSlash(p))
	}

	for path, input := range inputs {
		from := normalize(path)
		graph.AddModule(from)
		for _, imp := range input.Imports {
			target := imp.Path
			if !imp.External {
				target = normalize(imp.Path)
			}
			graph.AddImport(from, Import{Path: target, External: imp.External})
		}
	}
	return graph
}
