// Package validate checks that every function declared in a manifest has a
// loadable source module with a callable default export.
package validate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"github.com/denohooks/denohooks/internal/jsmodule"
	"github.com/denohooks/denohooks/internal/manifest"
)

var (
	// ErrMissingSourceFile is returned when a function has no source_file
	ErrMissingSourceFile = errors.New("No source_file property provided")
	// ErrSourceFileNotFound is returned when source_file does not name a regular file
	ErrSourceFileNotFound = errors.New("Could not find file")
	// ErrNoDefaultExport is returned when the module has no default export
	ErrNoDefaultExport = errors.New("no default export")
	// ErrDefaultExportNotCallable is returned when the default export is not a function
	ErrDefaultExportNotCallable = errors.New("default export is not a function")
	// ErrModuleLoad is returned when the module cannot be compiled or evaluated
	ErrModuleLoad = errors.New("module could not be loaded")
	// ErrInvalidFunctionID is returned for IDs that cannot name a bundle file
	ErrInvalidFunctionID = errors.New("invalid function ID")
	// ErrSourceOutsideProject is returned when source_file leaves the project root
	ErrSourceOutsideProject = errors.New("source_file must be inside the project root")

	// Function IDs name the bundle file, so only allow characters that
	// cannot change the directory it lands in
	validFunctionIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_.-]+$`)
)

// maxFunctionIDLength keeps bundle file names within filesystem limits
const maxFunctionIDLength = 128

// ValidateFunctionID checks that id can be used as a bundle file name
func ValidateFunctionID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: function ID cannot be empty", ErrInvalidFunctionID)
	}
	if len(id) > maxFunctionIDLength {
		return fmt.Errorf("%w: %q is too long (max %d characters)", ErrInvalidFunctionID, id, maxFunctionIDLength)
	}
	if id == "." || id == ".." {
		return fmt.Errorf("%w: %q is reserved", ErrInvalidFunctionID, id)
	}
	if !validFunctionIDRegex.MatchString(id) {
		return fmt.Errorf("%w: %q must contain only letters, numbers, dots, hyphens and underscores", ErrInvalidFunctionID, id)
	}
	return nil
}

// FunctionError identifies the function a validation failure belongs to
type FunctionError struct {
	FunctionID string
	Path       string // resolved source path, empty if unknown
	Err        error
}

func (e *FunctionError) Error() string {
	switch {
	case errors.Is(e.Err, ErrMissingSourceFile):
		return fmt.Sprintf("%s for function %q", e.Err, e.FunctionID)
	case errors.Is(e.Err, ErrSourceFileNotFound):
		return fmt.Sprintf("%s: %s for function %q. Make sure your function's \"source_file\" property is relative to your project root.", ErrSourceFileNotFound, e.Path, e.FunctionID)
	case e.Path != "":
		return fmt.Sprintf("function %q (%s): %s", e.FunctionID, e.Path, e.Err)
	default:
		return fmt.Sprintf("function %q: %s", e.FunctionID, e.Err)
	}
}

func (e *FunctionError) Unwrap() error { return e.Err }

// Validator validates manifest functions
type Validator struct {
	inspector jsmodule.Inspector
	logger    zerolog.Logger
}

// New creates a validator that loads modules through inspector
func New(inspector jsmodule.Inspector, logger zerolog.Logger) *Validator {
	return &Validator{
		inspector: inspector,
		logger:    logger.With().Str("component", "validate").Logger(),
	}
}

// Validate checks every non-API function in ID order. All functions are
// checked; the failures are joined so each failing function is reported.
func (v *Validator) Validate(ctx context.Context, projectRoot string, m manifest.Manifest) error {
	fns, err := m.Functions()
	if err != nil {
		return err
	}

	var errs []error
	for _, fn := range fns {
		if fn.IsAPI() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := v.ValidateFunction(ctx, projectRoot, fn); err != nil {
			v.logger.Debug().Str("function", fn.ID).Err(err).Msg("Function failed validation")
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ValidateFunction checks a single function definition
func (v *Validator) ValidateFunction(ctx context.Context, projectRoot string, fn manifest.Function) error {
	if err := ValidateFunctionID(fn.ID); err != nil {
		return &FunctionError{FunctionID: fn.ID, Err: err}
	}
	if fn.SourceFile == "" {
		return &FunctionError{FunctionID: fn.ID, Err: ErrMissingSourceFile}
	}

	path := filepath.Join(projectRoot, filepath.FromSlash(fn.SourceFile))
	if !Within(projectRoot, path) {
		return &FunctionError{FunctionID: fn.ID, Path: path, Err: ErrSourceOutsideProject}
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &FunctionError{FunctionID: fn.ID, Path: path, Err: ErrSourceFileNotFound}
		}
		return &FunctionError{FunctionID: fn.ID, Path: path, Err: err}
	}
	if !info.Mode().IsRegular() {
		return &FunctionError{FunctionID: fn.ID, Path: path, Err: fmt.Errorf("%w: not a regular file", ErrSourceFileNotFound)}
	}

	export, err := v.inspector.Inspect(ctx, path)
	if err != nil {
		if errors.Is(err, jsmodule.ErrLoad) {
			return &FunctionError{FunctionID: fn.ID, Path: path, Err: fmt.Errorf("%w: %w", ErrModuleLoad, err)}
		}
		return &FunctionError{FunctionID: fn.ID, Path: path, Err: err}
	}

	if !export.HasDefault {
		return &FunctionError{FunctionID: fn.ID, Path: path, Err: ErrNoDefaultExport}
	}
	if !export.IsCallable() {
		return &FunctionError{FunctionID: fn.ID, Path: path, Err: fmt.Errorf("%w (got %s)", ErrDefaultExportNotCallable, export.Kind)}
	}

	v.logger.Debug().Str("function", fn.ID).Str("path", path).Msg("Function validated")
	return nil
}

// Within reports whether path is root or lies below it. Both are cleaned
// lexically; symlinks are not followed.
func Within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil || filepath.IsAbs(rel) {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
