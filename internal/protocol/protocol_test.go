package protocol

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("defaults to base", func(t *testing.T) {
		p, err := NewWithWriter(&bytes.Buffer{}, Options{})
		require.NoError(t, err)
		assert.Equal(t, "default", p.Name())
	})

	t.Run("unknown protocol falls back to base", func(t *testing.T) {
		p, err := NewWithWriter(&bytes.Buffer{}, Options{Protocol: "carrier-pigeon"})
		require.NoError(t, err)
		assert.Equal(t, "default", p.Name())
	})

	t.Run("message boundaries requires boundary", func(t *testing.T) {
		_, err := NewWithWriter(&bytes.Buffer{}, Options{Protocol: MessageBoundaries})
		require.ErrorIs(t, err, ErrNoBoundary)
	})

	t.Run("message boundaries", func(t *testing.T) {
		p, err := NewWithWriter(&bytes.Buffer{}, Options{Protocol: MessageBoundaries, Boundary: "b1"})
		require.NoError(t, err)
		assert.Equal(t, MessageBoundaries, p.Name())
	})
}

func TestBase(t *testing.T) {
	t.Run("writes diagnostics and response", func(t *testing.T) {
		var buf bytes.Buffer
		p := NewBase(&buf, false)
		p.Log("hello", 42)
		p.Warn("careful")
		p.Error("boom")
		p.Respond(`{"ok":true}`)

		assert.Equal(t, "hello 42\ncareful\nboom\n{\"ok\":true}\n", buf.String())
	})

	t.Run("quiet drops diagnostics only", func(t *testing.T) {
		var buf bytes.Buffer
		p := NewBase(&buf, true)
		p.Log("hello")
		p.Warn("careful")
		p.Error("boom")
		p.Respond("{}")

		assert.Equal(t, "{}\n", buf.String())
	})
}

func TestBoundary_Respond(t *testing.T) {
	var buf bytes.Buffer
	p, err := NewBoundary(&buf, "----b")
	require.NoError(t, err)

	p.Log("building")
	p.Respond(`{"functions":{}}`)

	assert.Equal(t, "building\n----b\n{\"functions\":{}}\n", buf.String())
}
