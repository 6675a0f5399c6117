package config

import (
	"log/slog"
	"os"
	"strings"

	"github.com/sweater-ventures/devslog"
	"golang.org/x/term"
)

type ContextKey string

var LoggerContextKey = ContextKey("logger")

var logLevel = new(slog.LevelVar)

// InitLogging installs the process-wide slog handler. JSON is used when
// JSON_LOGGING=true or stdout is not a terminal; otherwise devslog.
func InitLogging() {
	logLevel.Set(slog.LevelInfo)
	jsonLogging := false
	jsonLoggingEnv, ok := os.LookupEnv("JSON_LOGGING")
	if ok && strings.ToLower(jsonLoggingEnv) == "true" {
		jsonLogging = true
	}
	if jsonLogging || !term.IsTerminal(int(os.Stdout.Fd())) {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: logLevel,
		})).With(slog.String("app", "psph"), slog.String("version", Version)))
	} else {
		logger := slog.New(devslog.NewHandler(os.Stdout, &devslog.Options{
			HandlerOptions: &slog.HandlerOptions{
				Level: logLevel,
			},
			TimeFormat:           "[ 03:04:05 PM ]",
			StringIndentation:    true,
			DisableAttributeType: true,
		}))
		slog.SetDefault(logger)
	}
}

// InitCLILogging sends logs to stderr so they do not interleave with a
// terminal UI drawn on stdout.
func InitCLILogging(level slog.Level) {
	logLevel.Set(level)
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})))
}
