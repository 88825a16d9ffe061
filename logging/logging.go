// Package logging sets up the zerolog logger the whole process shares.
//
// JSON output for production, console output for local development:
//
//	logger, err := logging.New(logging.Config{Level: "info", Format: "json"})
//	logger.Info().Str("component", "billing").Msg("batch started")
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Config holds logging configuration.
type Config struct {
	// Level is the minimum log level: debug, info, warn, error.
	Level string
	// Format is "json" or "console".
	Format string
	// Output defaults to os.Stderr.
	Output io.Writer
}

// New builds a configured zerolog.Logger.
func New(cfg Config) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	return zerolog.New(out).Level(level).With().Timestamp().Logger(), nil
}
