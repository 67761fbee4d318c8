package jsmodule

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
)

// Fallback inspects with Primary and retries with Secondary when Primary
// cannot compile the module because of top-level await, or when the default
// export depends on a stubbed import.
type Fallback struct {
	Primary   Inspector
	Secondary Inspector
	Logger    zerolog.Logger
}

// NewFallback creates a Fallback. A nil secondary returns primary unchanged.
func NewFallback(primary, secondary Inspector, logger zerolog.Logger) Inspector {
	if secondary == nil {
		return primary
	}
	return &Fallback{Primary: primary, Secondary: secondary, Logger: logger}
}

// Inspect implements Inspector.
func (f *Fallback) Inspect(ctx context.Context, path string) (*Export, error) {
	export, err := f.Primary.Inspect(ctx, path)
	switch {
	case errors.Is(err, ErrTopLevelAwait):
		f.Logger.Debug().Str("path", path).Msg("Module uses top-level await, retrying with deno")
	case err != nil:
		return nil, err
	case export.Resolved() != nil:
		f.Logger.Debug().Str("path", path).Msg("Default export depends on stubbed imports, retrying with deno")
	default:
		return export, nil
	}
	return f.Secondary.Inspect(ctx, path)
}
