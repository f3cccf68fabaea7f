package log

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInitRendersFixedFormat(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: InfoLevel, Output: &buf})

	Logger.Info().Msg("listening")

	line := buf.String()
	require.Contains(t, line, AppName+":")
	require.Contains(t, line, "[INFO]")
	require.Contains(t, line, "listening")
}

func TestInitJSONMode(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: InfoLevel, JSON: true, Output: &buf})

	Logger.Warn().Msg("pulling image")

	line := buf.String()
	require.True(t, strings.HasPrefix(strings.TrimSpace(line), "{"))
	require.Contains(t, line, "pulling image")
}

func TestShortIDTruncates(t *testing.T) {
	long := "a1b2c3d4e5f6a7b8c9d0e1f2a3b4c5d6e7f8a9b0"
	require.Equal(t, "a1b2c3d4e5f6", shortID(long))
	require.Equal(t, "short", shortID("short"))
}

func TestWithHelpersAttachFields(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: DebugLevel, JSON: true, Output: &buf})

	WithHoneypot("ssh").Info().Msg("x")
	require.Contains(t, buf.String(), `"honeypot":"ssh"`)

	buf.Reset()
	WithSession("abc-123").Info().Msg("x")
	require.Contains(t, buf.String(), `"session_id":"abc-123"`)

	buf.Reset()
	WithContainer("a1b2c3d4e5f6a7b8").Info().Msg("x")
	require.Contains(t, buf.String(), `"container_id":"a1b2c3d4e5f6"`)
}
