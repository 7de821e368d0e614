// Package logging wires zerolog the way the rest of the corpus does:
// pretty console output for local development, structured JSON in
// production, selected by an environment variable so no code change is
// needed between the two.
package logging

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// New builds the process-wide logger. env is typically read from
// POKERD_ENV; anything other than "production" gets the human-readable
// console writer.
func New(env string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339

	if strings.EqualFold(strings.TrimSpace(env), "production") {
		return zerolog.New(os.Stdout).With().Timestamp().Logger()
	}

	writer := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}
	return zerolog.New(writer).With().Timestamp().Logger()
}
