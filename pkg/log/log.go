// Package log provides the structured logger shared by the coordinator
// and worker binaries.
package log

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the global logger instance. Init must be called before use;
// until then it falls back to zerolog's default (silent) logger.
var Logger zerolog.Logger

// Level is a coarse logging level, independent of zerolog's own type so
// callers never need to import zerolog just to pick a level.
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

// Config holds logging configuration.
type Config struct {
	Level      Level
	JSONOutput bool
	Output     io.Writer
}

// Init initializes the global logger.
func Init(cfg Config) {
	var level zerolog.Level
	switch cfg.Level {
	case DebugLevel:
		level = zerolog.DebugLevel
	case InfoLevel:
		level = zerolog.InfoLevel
	case WarnLevel:
		level = zerolog.WarnLevel
	case ErrorLevel:
		level = zerolog.ErrorLevel
	default:
		level = zerolog.InfoLevel
	}

	zerolog.SetGlobalLevel(level)

	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}

	if cfg.JSONOutput {
		Logger = zerolog.New(output).With().Timestamp().Logger()
	} else {
		Logger = zerolog.New(zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}).With().Timestamp().Logger()
	}
}

// LevelFromVerbosity maps a repeated -v flag count to a Level, mirroring
// the coordinator and worker CLI's "-v, repeatable, raises the log level"
// contract: 0 verbose flags is warn, 1 is info, 2+ is debug.
func LevelFromVerbosity(count int) Level {
	switch {
	case count <= 0:
		return WarnLevel
	case count == 1:
		return InfoLevel
	default:
		return DebugLevel
	}
}

// WithComponent creates a child logger tagged with a component field.
func WithComponent(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}

// WithBurner creates a child logger tagged with a burner name field.
func WithBurner(name string) zerolog.Logger {
	return Logger.With().Str("burner", name).Logger()
}

// WithJob creates a child logger tagged with a job identifier field.
func WithJob(id string) zerolog.Logger {
	return Logger.With().Str("job_id", id).Logger()
}
