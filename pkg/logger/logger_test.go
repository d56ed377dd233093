package logger

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestSetLevel(t *testing.T) {
	defer SetLevel("info")

	SetLevel("debug")
	assert.Equal(t, zerolog.DebugLevel, Log.GetLevel())

	SetLevel("loud")
	assert.Equal(t, zerolog.InfoLevel, Log.GetLevel())
}

func TestNewWritesStructuredFields(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf)
	l.Info().Str("mount", "/azure").Msg("installed")
	assert.Contains(t, buf.String(), `"mount":"/azure"`)
	assert.Contains(t, buf.String(), `"message":"installed"`)
}
