package config

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// parseLogLevel converts a string log level to slog.Level
func parseLogLevel(level string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo // Default to INFO if invalid/empty
	}
}

// GetLogLevel returns the log level from LOG_LEVEL environment variable
// Defaults to INFO if not set or invalid
func GetLogLevel() slog.Level {
	return parseLogLevel(os.Getenv("LOG_LEVEL"))
}

// NewLogger creates a new structured logger with the configured log level.
// HTTP mode logs JSON to stdout; stdio mode logs text to stderr so log
// lines never interleave with MCP traffic on stdout.
func NewLogger(isStdioMode bool) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: GetLogLevel(),
	}

	if isStdioMode {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

// NewTextLogger creates a text-based logger with the configured log level.
// Used by the one-shot match mode where human-readable output is preferred.
func NewTextLogger(output io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: GetLogLevel(),
	}

	return slog.New(slog.NewTextHandler(output, opts))
}

// NewTestLogger creates a logger for testing with configurable level and output.
// If level is empty, uses LOG_LEVEL environment variable.
func NewTestLogger(output io.Writer, level string) *slog.Logger {
	var logLevel slog.Level
	if level == "" {
		logLevel = GetLogLevel()
	} else {
		logLevel = parseLogLevel(level)
	}

	opts := &slog.HandlerOptions{
		Level: logLevel,
	}

	return slog.New(slog.NewTextHandler(output, opts))
}
