// Package hooks describes the hook commands advertised to the parent CLI.
package hooks

import (
	"fmt"
	"strings"
)

const (
	// RuntimeModule is the deno.land module serving the local runtime
	RuntimeModule = "deno_slack_runtime"
	// DevDomainFlag is forwarded to the start hook
	DevDomainFlag = "sdk-slack-dev-domain"
	// IgnoreCertErrorsFlag is accepted as an alias of DevDomainFlag
	IgnoreCertErrorsFlag = "sdk-unsafely-ignore-certificate-errors"
)

// Scripts is the get-hooks response
type Scripts struct {
	Runtime string            `json:"runtime"`
	Hooks   map[string]string `json:"hooks"`
	Config  Config            `json:"config"`
}

// Config tells the parent how to talk to the hooks and what to watch
type Config struct {
	ProtocolVersion []string `json:"protocol-version"`
	Watch           Watch    `json:"watch"`
}

// Watch configures the parent's file watcher
type Watch struct {
	FilterRegex string   `json:"filter-regex"`
	Paths       []string `json:"paths"`
}

// Options configures Build
type Options struct {
	Executable     string // command that runs this binary
	RuntimeVersion string
	DevDomain      string
	IgnoreCerts    string
}

// Build returns the hook table
func Build(opts Options) Scripts {
	exe := quote(opts.Executable)
	self := func(hook string) string { return exe + " " + hook }

	start := fmt.Sprintf("deno run -q --config=deno.jsonc --allow-read --allow-net --allow-run --allow-env https://deno.land/x/%s@%s/local-run.ts",
		RuntimeModule, opts.RuntimeVersion)
	if extra := StartFlags(opts.DevDomain, opts.IgnoreCerts); extra != "" {
		start += " " + extra
	}

	return Scripts{
		Runtime: "deno",
		Hooks: map[string]string{
			"get-manifest": self("get-manifest"),
			"get-trigger":  self("get-trigger"),
			"build":        self("build"),
			"doctor":       self("doctor"),
			"start":        start,
		},
		Config: Config{
			ProtocolVersion: []string{"message-boundaries"},
			Watch: Watch{
				FilterRegex: `\.(ts|js)$`,
				Paths:       []string{"."},
			},
		},
	}
}

// StartFlags returns the extra flag passed to the start hook. The dev
// domain wins over the certificate flag.
func StartFlags(devDomain, ignoreCerts string) string {
	value := devDomain
	if value == "" {
		value = ignoreCerts
	}
	if value == "" {
		return ""
	}
	return "--" + DevDomainFlag + "=" + value
}

func quote(s string) string {
	if s == "" || strings.ContainsAny(s, " \t\"'") {
		return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
	}
	return s
}
