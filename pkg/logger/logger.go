// Package logger wires zerolog for the rest of the module.
package logger

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Config controls the root logger's verbosity and rendering.
type Config struct {
	Level  string
	Pretty bool
}

// New builds a root logger from cfg. Unknown levels fall back to info.
func New(cfg Config) zerolog.Logger {
	level := parseLevel(cfg.Level)
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	var output = os.Stdout
	if cfg.Pretty {
		cw := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05"}
		return zerolog.New(cw).Level(level).With().Timestamp().Caller().Logger()
	}

	return zerolog.New(output).Level(level).With().Timestamp().Caller().Logger()
}

// SetGlobalLogger installs l as zerolog's DefaultContextLogger, which
// zerolog.Ctx returns for a context that carries no logger. The
// github.com/rs/zerolog/log package's log.Logger is not changed.
func SetGlobalLogger(l zerolog.Logger) {
	zerolog.DefaultContextLogger = &l
}

func parseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "", "info":
		return zerolog.InfoLevel
	default:
		return zerolog.InfoLevel
	}
}
