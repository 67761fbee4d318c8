// Package deno runs the deno executable.
package deno

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
)

// ErrNotInstalled is returned when no deno executable can be found
var ErrNotInstalled = errors.New("deno is not installed. Install from https://deno.land")

// CommandError is returned when deno exits with a non-zero status
type CommandError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *CommandError) Error() string {
	msg := CleanDiagnostics(e.Stderr)
	if msg == "" {
		msg = e.Err.Error()
	}
	return fmt.Sprintf("deno %s: %s", strings.Join(e.Args[:min(1, len(e.Args))], " "), msg)
}

func (e *CommandError) Unwrap() error { return e.Err }

// Runner executes deno with the given arguments in dir
type Runner interface {
	Run(ctx context.Context, dir string, args ...string) (stdout, stderr []byte, err error)
}

// ExecRunner runs a deno executable as a child process
type ExecRunner struct {
	Path string
}

// Run implements Runner.
func (r *ExecRunner) Run(ctx context.Context, dir string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, r.Path, args...) //nolint:gosec // Path is resolved by Find
	cmd.Dir = dir

	// Build environment for Deno, ensuring DENO_DIR and HOME are set.
	// Filter out existing values and add them explicitly at the end.
	cmd.Env = filterEnvVars(os.Environ(), "DENO_DIR", "HOME", "NO_COLOR")
	home := os.Getenv("HOME")
	if home == "" {
		home = os.TempDir()
	}
	cmd.Env = append(cmd.Env, "HOME="+home, "NO_COLOR=1")
	if denoDir := os.Getenv("DENO_DIR"); denoDir != "" {
		cmd.Env = append(cmd.Env, "DENO_DIR="+denoDir)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return stdout.Bytes(), stderr.Bytes(), fmt.Errorf("deno %s: %w", args[0], ctxErr)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return stdout.Bytes(), stderr.Bytes(), &CommandError{Args: args, Stderr: stderr.String(), Err: err}
		}
		return stdout.Bytes(), stderr.Bytes(), fmt.Errorf("failed to run deno: %w", err)
	}

	return stdout.Bytes(), stderr.Bytes(), nil
}

// Find locates the deno executable. An explicit path wins; otherwise PATH
// and the common installation directories are searched.
func Find(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("configured deno path %s: %w", explicit, err)
		}
		return explicit, nil
	}

	if denoPath, err := exec.LookPath("deno"); err == nil {
		return denoPath, nil
	}

	commonPaths := []string{
		"/usr/local/bin/deno",
		"/usr/bin/deno",
		"/opt/homebrew/bin/deno",
		"/home/linuxbrew/.linuxbrew/bin/deno",
	}
	if home, err := os.UserHomeDir(); err == nil {
		commonPaths = append(commonPaths, filepath.Join(home, ".deno", "bin", "deno"))
	}
	if denoInstall := os.Getenv("DENO_INSTALL"); denoInstall != "" {
		commonPaths = append(commonPaths, filepath.Join(denoInstall, "bin", "deno"))
	}

	for _, path := range commonPaths {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", ErrNotInstalled
}

// Toolchain runs deno subcommands through a Runner
type Toolchain struct {
	runner Runner
}

// New creates a toolchain for the deno executable at path
func New(path string) *Toolchain {
	return &Toolchain{runner: &ExecRunner{Path: path}}
}

// NewWithRunner creates a toolchain backed by a custom runner
func NewWithRunner(r Runner) *Toolchain {
	return &Toolchain{runner: r}
}

// Bundle runs `deno bundle --quiet` and returns the bundle written to stdout.
// Writing to stdout works with both the 1.x and 2.x command line.
func (t *Toolchain) Bundle(ctx context.Context, dir, entrypoint, configPath string) ([]byte, error) {
	args := []string{"bundle", "--quiet"}
	if configPath != "" {
		args = append(args, "--config", configPath)
	}
	args = append(args, entrypoint)

	stdout, _, err := t.runner.Run(ctx, dir, args...)
	if err != nil {
		return nil, err
	}
	return stdout, nil
}

// Eval runs a script with `deno eval` and returns its stdout
func (t *Toolchain) Eval(ctx context.Context, dir, configPath, script string) ([]byte, error) {
	args := []string{"eval", "--quiet"}
	if configPath != "" {
		args = append(args, "--config", configPath)
	}
	args = append(args, script)

	stdout, _, err := t.runner.Run(ctx, dir, args...)
	if err != nil {
		return nil, err
	}
	return stdout, nil
}

// CleanDiagnostics extracts the relevant lines from deno or esbuild output
func CleanDiagnostics(errMsg string) string {
	errMsg = ansiPattern.ReplaceAllString(errMsg, "")

	var relevantLines []string
	for _, line := range strings.Split(errMsg, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.Contains(line, "error:") ||
			strings.Contains(line, "Module not found") ||
			strings.Contains(line, "Expected") ||
			strings.Contains(line, "Unexpected") ||
			strings.Contains(line, "Could not resolve") {
			relevantLines = append(relevantLines, line)
		}
	}

	if len(relevantLines) > 0 {
		return strings.Join(relevantLines, "\n")
	}

	// Fallback to full output if we couldn't extract anything
	return strings.TrimSpace(errMsg)
}

var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*m`)

// filterEnvVars returns a copy of env with the specified variable names removed
func filterEnvVars(env []string, names ...string) []string {
	result := make([]string, 0, len(env))
	for _, e := range env {
		skip := false
		for _, name := range names {
			if strings.HasPrefix(e, name+"=") {
				skip = true
				break
			}
		}
		if !skip {
			result = append(result, e)
		}
	}
	return result
}
