package util

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger returns a configured zerolog.Logger with the specified log level.
func NewLogger(level zerolog.Level) zerolog.Logger {
	var logger zerolog.Logger
	stage := os.Getenv("STAGE")
	if strings.EqualFold(stage, "local") {
		// Pretty printing for development
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			With().
			Str("app", "ike-wp-"+stage).
			Timestamp().
			Logger()
	} else {
		// JSON output for production
		logger = zerolog.New(os.Stdout).
			With().
			Timestamp().
			Str("app", "ike-wp-"+stage).
			Logger()
	}

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(level)

	return logger
}

// ParseLevel maps a textual level to a zerolog.Level, falling back to def.
func ParseLevel(name string, def zerolog.Level) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return def
	}
}
