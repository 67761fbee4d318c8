package jsmodule

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/denohooks/denohooks/internal/deno"
)

const exportSentinel = "__denohooks_export__"

// DenoInspector imports the module with `deno eval`, giving true dynamic
// evaluation including remote imports and top-level await.
type DenoInspector struct {
	toolchain  *deno.Toolchain
	configPath string
}

// NewDenoInspector creates an inspector backed by the deno toolchain.
// configPath may be empty.
func NewDenoInspector(toolchain *deno.Toolchain, configPath string) *DenoInspector {
	return &DenoInspector{toolchain: toolchain, configPath: configPath}
}

// Inspect implements Inspector.
func (d *DenoInspector) Inspect(ctx context.Context, path string) (*Export, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	script := fmt.Sprintf(`const mod = await import(%q);
const describe = %s;
console.log(%q + describe(mod));`, FileURL(absPath), describeSource, exportSentinel)

	stdout, err := d.toolchain.Eval(ctx, filepath.Dir(absPath), d.configPath, script)
	if err != nil {
		var cmdErr *deno.CommandError
		if errors.As(err, &cmdErr) {
			return nil, &LoadError{Path: absPath, Detail: deno.CleanDiagnostics(cmdErr.Stderr)}
		}
		return nil, err
	}

	return parseSentinel(absPath, string(stdout))
}

// parseSentinel finds the last sentinel line; anything the module printed
// itself is ignored.
func parseSentinel(absPath, stdout string) (*Export, error) {
	lines := strings.Split(stdout, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		payload, ok := strings.CutPrefix(strings.TrimSpace(lines[i]), exportSentinel)
		if !ok {
			continue
		}
		export := &Export{}
		if err := json.Unmarshal([]byte(payload), export); err != nil {
			return nil, &LoadError{Path: absPath, Detail: fmt.Sprintf("invalid export description: %v", err)}
		}
		return export, nil
	}
	return nil, &LoadError{Path: absPath, Detail: "deno eval produced no export description"}
}

// FileURL converts an absolute path to a file:// URL
func FileURL(absPath string) string {
	p := filepath.ToSlash(absPath)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return (&url.URL{Scheme: "file", Path: p}).String()
}
