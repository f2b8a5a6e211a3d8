// Package log provides structured logging on zerolog.
//
// The logger writes to stderr so it never mixes with command output on
// stdout. Verbosity comes from TEAM_CHAT_LOG (debug, info, warn, error);
// the default is warn, which keeps normal CLI runs quiet.
package log

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// EnvVar names the environment variable that selects the log level.
const EnvVar = "TEAM_CHAT_LOG"

// Logger is the process-wide logger. Commands call Init early; packages
// that log before Init see the same defaults.
var Logger = newLogger(os.Stderr, levelFromEnv())

// Init configures the process logger. jsonOutput selects raw JSON lines
// over the human console format.
func Init(jsonOutput bool) {
	var w io.Writer = os.Stderr
	if !jsonOutput {
		w = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}
	Logger = zerolog.New(w).Level(levelFromEnv()).With().Timestamp().Logger()
}

// With returns a child logger carrying a component field.
func With(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}

func newLogger(w io.Writer, level zerolog.Level) zerolog.Logger {
	cw := zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	return zerolog.New(cw).Level(level).With().Timestamp().Logger()
}

func levelFromEnv() zerolog.Level {
	switch strings.ToLower(os.Getenv(EnvVar)) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "":
		return zerolog.WarnLevel
	default:
		return zerolog.WarnLevel
	}
}
