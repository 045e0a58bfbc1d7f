package monitoring

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetLogger(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	var got string
	SetLogger(func(format string, v ...interface{}) {
		got = format
	})
	Logf("[sweep] started")
	assert.Equal(t, "[sweep] started", got)

	got = ""
	SetLogger(nil)
	Logf("[sweep] muted")
	assert.Empty(t, got, "nil logger must be a no-op")
}

func TestDefaultLogfWritesThroughLogger(t *testing.T) {
	originalLogger := Logger
	originalLogf := Logf
	defer func() {
		Logger = originalLogger
		Logf = originalLogf
	}()

	var buf bytes.Buffer
	Logger = zerolog.New(&buf)
	Logf = defaultLogf

	Logf("measured %d points", 3)
	assert.Contains(t, buf.String(), "measured 3 points")
	assert.Contains(t, buf.String(), `"level":"info"`)
}

func TestSetLevel(t *testing.T) {
	originalLogger := Logger
	defer func() { Logger = originalLogger }()

	var buf bytes.Buffer
	Logger = zerolog.New(&buf)

	require.NoError(t, SetLevel("warn"))
	defaultLogf("dropped")
	assert.Empty(t, buf.String())

	assert.Error(t, SetLevel("loud"))
}
