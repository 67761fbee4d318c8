// Package logging routes zerolog output through the host protocol.
package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/term"

	"github.com/denohooks/denohooks/internal/protocol"
)

// Writer is a zerolog.LevelWriter that intercepts log events and forwards
// them to the host protocol, optionally mirroring them to a console.
type Writer struct {
	proto   protocol.Protocol
	console io.Writer
}

// NewWriter creates a writer that forwards to proto. When consoleEnabled is
// set, events are also written to stderr in human readable form.
func NewWriter(proto protocol.Protocol, consoleEnabled bool) *Writer {
	var console io.Writer
	if consoleEnabled {
		console = zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339,
			NoColor:    !term.IsTerminal(int(os.Stderr.Fd())),
		}
	}

	return &Writer{
		proto:   proto,
		console: console,
	}
}

// Write implements io.Writer. Events without a recognised level are
// forwarded as plain log lines.
func (w *Writer) Write(p []byte) (n int, err error) {
	return w.WriteLevel(zerolog.NoLevel, p)
}

// WriteLevel implements zerolog.LevelWriter.
func (w *Writer) WriteLevel(level zerolog.Level, p []byte) (n int, err error) {
	n = len(p)

	if w.console != nil {
		_, _ = w.console.Write(p)
	}

	entry, parseErr := parseZerologJSON(p)
	if parseErr != nil {
		// Not JSON; forward the raw text
		w.proto.Log(strings.TrimRight(string(p), "\n"))
		return n, nil
	}
	if level == zerolog.NoLevel {
		level = entry.Level
	}

	line := entry.String()
	switch {
	case level >= zerolog.ErrorLevel:
		w.proto.Error(line)
	case level == zerolog.WarnLevel:
		w.proto.Warn(line)
	default:
		w.proto.Log(line)
	}

	return n, nil
}

// Entry is a parsed zerolog event.
type Entry struct {
	Level     zerolog.Level
	Message   string
	Component string
	Error     string
	Fields    map[string]any
}

// String renders the entry as a single diagnostic line,
// e.g. "[bundler] bundle failed backend=deno error=exit status 1".
func (e *Entry) String() string {
	var b strings.Builder
	if e.Component != "" {
		b.WriteString("[")
		b.WriteString(e.Component)
		b.WriteString("] ")
	}
	b.WriteString(e.Message)

	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, e.Fields[k])
	}

	if e.Error != "" {
		b.WriteString(" error=")
		b.WriteString(e.Error)
	}
	return b.String()
}

// parseZerologJSON parses zerolog JSON output into an Entry.
func parseZerologJSON(p []byte) (*Entry, error) {
	var raw map[string]any
	if err := json.Unmarshal(p, &raw); err != nil {
		return nil, err
	}

	entry := &Entry{
		Level:  zerolog.InfoLevel,
		Fields: make(map[string]any),
	}

	if level, ok := raw[zerolog.LevelFieldName].(string); ok {
		entry.Level = parseLogLevel(level)
		delete(raw, zerolog.LevelFieldName)
	}

	if msg, ok := raw[zerolog.MessageFieldName].(string); ok {
		entry.Message = msg
		delete(raw, zerolog.MessageFieldName)
	} else if msg, ok := raw["msg"].(string); ok {
		entry.Message = msg
		delete(raw, "msg")
	}

	delete(raw, zerolog.TimestampFieldName)

	if component, ok := raw["component"].(string); ok {
		entry.Component = component
		delete(raw, "component")
	}

	if errMsg, ok := raw[zerolog.ErrorFieldName].(string); ok {
		entry.Error = errMsg
		delete(raw, zerolog.ErrorFieldName)
		if entry.Level == zerolog.InfoLevel {
			entry.Level = zerolog.ErrorLevel
		}
	}

	for k, v := range raw {
		entry.Fields[k] = v
	}

	return entry, nil
}

// parseLogLevel converts a zerolog level string to a zerolog.Level.
func parseLogLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "panic":
		return zerolog.PanicLevel
	default:
		return zerolog.InfoLevel
	}
}
