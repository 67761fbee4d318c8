package logging

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/denohooks/denohooks/internal/protocol"
)

// Setup installs a global logger that writes through proto and returns it.
// debug forces the debug level regardless of level.
func Setup(proto protocol.Protocol, level string, debug, console bool) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("invalid log level %q: %w", level, err)
	}
	if lvl == zerolog.NoLevel {
		lvl = zerolog.WarnLevel
	}
	if debug {
		lvl = zerolog.DebugLevel
	}

	logger := zerolog.New(NewWriter(proto, console)).
		Level(lvl).
		With().
		Timestamp().
		Logger()

	log.Logger = logger
	return logger, nil
}
