package deno

import (
	"context"
	"fmt"
	"strings"
)

// Versions holds the component versions reported by `deno --version`
type Versions struct {
	Deno       string
	V8         string
	TypeScript string
}

// Version runs `deno --version`
func (t *Toolchain) Version(ctx context.Context) (*Versions, error) {
	stdout, _, err := t.runner.Run(ctx, "", "--version")
	if err != nil {
		return nil, err
	}
	return ParseVersion(string(stdout))
}

// ParseVersion parses output such as:
//
//	deno 1.46.3 (stable, release, x86_64-unknown-linux-gnu)
//	v8 12.9.202.5-rusty
//	typescript 5.5.2
func ParseVersion(out string) (*Versions, error) {
	v := &Versions{}
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		switch fields[0] {
		case "deno":
			v.Deno = fields[1]
		case "v8":
			v.V8 = fields[1]
		case "typescript":
			v.TypeScript = fields[1]
		}
	}
	if v.Deno == "" {
		return nil, fmt.Errorf("unrecognised deno version output: %q", strings.TrimSpace(out))
	}
	return v, nil
}
