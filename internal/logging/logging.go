// Package logging builds the application zerolog logger.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New returns a colored console logger in development and a JSON logger in
// production.
func New(env string) zerolog.Logger {
	return NewWithWriter(env, os.Stderr)
}

func NewWithWriter(env string, out io.Writer) zerolog.Logger {
	level := zerolog.DebugLevel
	w := out
	if env == "production" {
		level = zerolog.InfoLevel
	} else {
		w = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}
