// Package log builds the component-scoped zerolog loggers used across the
// bot, grounded on cmd/cryptorun/main.go's bootstrap (console writer to
// stderr, RFC3339 timestamps) generalized into a reusable constructor
// instead of one inline call in main().
package log

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Setup configures the global zerolog time format and returns a root
// logger writing to stderr: a human-readable console writer when attached
// to a terminal, structured JSON otherwise (e.g. under a process
// supervisor or in a container).
func Setup(levelName string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339

	level, err := zerolog.ParseLevel(levelName)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if isTerminal(os.Stderr) {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
			With().Timestamp().Logger()
	}
	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
