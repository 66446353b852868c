// internal/logger/log.go
package logger

import (
	"io"
	"os"

	stdlog "log"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
)

// Init configures the process-wide zerolog logger. Called once at
// startup, before any pipeline work.
//
// Operator output (listings, inspect dumps, summaries) goes to stderr so
// it never mixes with anything a caller might pipe from stdout. Verbose
// runs lower the level to debug; LOG_PRETTY=false switches the console
// writer to plain JSON for machine-collected environments.
func Init(serviceName string, verbose bool) {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	var w io.Writer = zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: "15:04:05",
	}
	if os.Getenv("LOG_PRETTY") == "false" {
		w = os.Stderr
	}

	zlog.Logger = zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Str("service", serviceName).
		Logger()

	// Route anything written through the standard library logger (the
	// AWS SDK's default logger included) into zerolog.
	stdlog.SetFlags(0)
	stdlog.SetOutput(zlog.Logger)
}
