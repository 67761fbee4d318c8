// Package protocol implements the framing rules used to talk to the parent CLI.
//
// Diagnostics and the final structured response share stdout, so every write
// goes through a Protocol that knows how the parent separates the two.
package protocol

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// MessageBoundaries is the name of the boundary-delimited protocol.
const MessageBoundaries = "message-boundaries"

// ErrNoBoundary is returned when message-boundaries is requested without a boundary.
var ErrNoBoundary = errors.New("no boundary argument provided!")

// Protocol is the channel through which hooks report diagnostics and deliver
// their response.
type Protocol interface {
	Name() string
	Log(args ...any)
	Warn(args ...any)
	Error(args ...any)
	Respond(data string)
}

// Base writes diagnostics and responses straight to the writer. When the
// parent asked for a manifest only, diagnostics are dropped so the response
// stays parseable.
type Base struct {
	out   io.Writer
	quiet bool
}

// NewBase creates a base protocol. quiet suppresses Log, Warn and Error.
func NewBase(out io.Writer, quiet bool) *Base {
	return &Base{out: out, quiet: quiet}
}

func (b *Base) Name() string { return "default" }

func (b *Base) Log(args ...any) {
	if !b.quiet {
		_, _ = fmt.Fprintln(b.out, joinArgs(args))
	}
}

func (b *Base) Warn(args ...any) {
	if !b.quiet {
		_, _ = fmt.Fprintln(b.out, joinArgs(args))
	}
}

func (b *Base) Error(args ...any) {
	if !b.quiet {
		_, _ = fmt.Fprintln(b.out, joinArgs(args))
	}
}

func (b *Base) Respond(data string) {
	_, _ = fmt.Fprintln(b.out, data)
}

// Boundary prefixes the response with a boundary line the parent chose, so
// any diagnostics printed before it are never mistaken for the response.
type Boundary struct {
	out      io.Writer
	boundary string
}

// NewBoundary creates a message-boundaries protocol.
func NewBoundary(out io.Writer, boundary string) (*Boundary, error) {
	if boundary == "" {
		return nil, ErrNoBoundary
	}
	return &Boundary{out: out, boundary: boundary}, nil
}

func (b *Boundary) Name() string { return MessageBoundaries }

func (b *Boundary) Log(args ...any) {
	_, _ = fmt.Fprintln(b.out, joinArgs(args))
}

func (b *Boundary) Warn(args ...any) {
	_, _ = fmt.Fprintln(b.out, joinArgs(args))
}

func (b *Boundary) Error(args ...any) {
	_, _ = fmt.Fprintln(b.out, joinArgs(args))
}

func (b *Boundary) Respond(data string) {
	_, _ = fmt.Fprintf(b.out, "%s\n%s\n", b.boundary, data)
}

// Options carries the protocol related flags the parent CLI passes.
type Options struct {
	Protocol string
	Boundary string
	// Manifest is set when the parent only wants the manifest on stdout.
	Manifest bool
}

// New picks a protocol from the parent's flags. Unknown protocol names fall
// back to the base protocol.
func New(opts Options) (Protocol, error) {
	return NewWithWriter(os.Stdout, opts)
}

// NewWithWriter is New with an explicit output stream.
func NewWithWriter(out io.Writer, opts Options) (Protocol, error) {
	if opts.Protocol == MessageBoundaries {
		return NewBoundary(out, opts.Boundary)
	}
	return NewBase(out, opts.Manifest), nil
}

func joinArgs(args []any) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = fmt.Sprint(a)
	}
	return strings.Join(parts, " ")
}
