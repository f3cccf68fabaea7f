// Package log provides structured logging for the honeypot dispatcher.
// Console output is rendered in the fixed "<app-name>: [<LEVEL>] <message>"
// format, matching what gets written to the system log facility (see
// log/syslog.go), with an optional JSON mode for aggregation.
package log

import (
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"
)

// AppName tags every rendered log line and every container's log-config tag.
const AppName = "hih-docker"

// Logger is the process-wide logger instance, configured by Init.
var Logger zerolog.Logger

// Level mirrors the CLI's notion of verbosity.
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

// Config controls how Init builds the global logger.
type Config struct {
	Level Level
	JSON  bool
	// Output defaults to the system log facility (see defaultOutput in
	// syslog.go), falling back to stderr when unavailable.
	Output io.Writer
}

// Init builds the global logger. Call once at process start; tests that
// need an isolated logger should build their own zerolog.Logger rather than
// depend on this package global.
func Init(cfg Config) {
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	out := cfg.Output
	if out == nil {
		out = defaultOutput()
	}

	if cfg.JSON {
		Logger = zerolog.New(out).With().Timestamp().Logger()
		return
	}

	Logger = zerolog.New(zerolog.ConsoleWriter{
		Out:             out,
		NoColor:         true,
		PartsOrder:      []string{zerolog.TimestampFieldName, zerolog.LevelFieldName, zerolog.MessageFieldName},
		FormatTimestamp: func(interface{}) string { return AppName + ":" },
		FormatLevel: func(i interface{}) string {
			return "[" + strings.ToUpper(fmt.Sprint(i)) + "]"
		},
	}).With().Timestamp().Logger()
}

func parseLevel(l Level) zerolog.Level {
	switch l {
	case DebugLevel:
		return zerolog.DebugLevel
	case WarnLevel:
		return zerolog.WarnLevel
	case ErrorLevel:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// WithHoneypot scopes a child logger to one configured honeypot.
func WithHoneypot(name string) zerolog.Logger {
	return Logger.With().Str("honeypot", name).Logger()
}

// WithSession scopes a child logger to one attacker<->container session.
func WithSession(sessionID string) zerolog.Logger {
	return Logger.With().Str("session_id", sessionID).Logger()
}

// WithContainer scopes a child logger to one container id.
func WithContainer(containerID string) zerolog.Logger {
	return Logger.With().Str("container_id", shortID(containerID)).Logger()
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
