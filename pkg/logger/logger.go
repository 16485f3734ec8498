// Package logger configures the process-wide zerolog logger.
package logger

import (
	"os"

	"github.com/rs/zerolog"
)

// Config controls logger construction.
type Config struct {
	Level  string // debug, info, warn, error (unknown defaults to info)
	Pretty bool   // human-readable console output instead of JSON
}

// New builds a zerolog.Logger from cfg and sets the process-wide level.
// Timestamps are RFC3339; the caller is attached at debug level only, since
// caller info is expensive and only useful when debugging.
func New(cfg Config) zerolog.Logger {
	zerolog.TimeFieldFormat = "2006-01-02T15:04:05Z07:00"

	level := parseLevel(cfg.Level)
	zerolog.SetGlobalLevel(level)

	var out = os.Stdout
	var writer zerolog.ConsoleWriter
	base := zerolog.New(out).With().Timestamp()

	if level == zerolog.DebugLevel {
		base = base.Caller()
	}

	log := base.Logger()
	if cfg.Pretty {
		writer = zerolog.ConsoleWriter{Out: out, TimeFormat: zerolog.TimeFieldFormat}
		log = log.Output(writer)
	}

	return log
}

func parseLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
