// Package logging provides structured logging for hdfproxy using zerolog.
package logging

import (
	"io"
	"os"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

var logger atomic.Pointer[zerolog.Logger]

func init() {
	// Default to JSON logging at info level
	l := zerolog.New(os.Stderr).With().Timestamp().Logger()
	logger.Store(&l)
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

// Init configures the global logger.
// If debug is true, sets log level to Debug.
// If human is true, uses a human-friendly console writer.
func Init(debug bool, human bool) {
	InitWriter(os.Stderr, debug, human)
}

// InitWriter is Init with an explicit destination.
func InitWriter(w io.Writer, debug bool, human bool) {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	var output zerolog.LevelWriter
	if human {
		output = zerolog.LevelWriterAdapter{Writer: zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: time.RFC3339,
		}}
	} else {
		output = zerolog.LevelWriterAdapter{Writer: w}
	}

	l := zerolog.New(output).With().Timestamp().Logger()
	logger.Store(&l)
}

// L returns the base logger.
func L() *zerolog.Logger {
	return logger.Load()
}

// WithComponent returns a logger with the component field set.
func WithComponent(component string) zerolog.Logger {
	return L().With().Str("component", component).Logger()
}

// SetLogger allows overriding the global logger (useful for testing).
func SetLogger(l zerolog.Logger) {
	logger.Store(&l)
}
