package observability

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger returns the process logger tagged with the service name.
// APP_ENV=dev (or development) writes human-readable console lines at debug
// level; anything else writes JSON at info level.
func NewLogger(env string) zerolog.Logger {
	if env == "dev" || env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			Level(zerolog.DebugLevel).
			With().Timestamp().Str("service", "spherelink").Logger()
	}
	return zerolog.New(os.Stdout).
		Level(zerolog.InfoLevel).
		With().Timestamp().Str("service", "spherelink").Logger()
}
