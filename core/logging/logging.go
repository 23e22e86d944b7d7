package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Options controls the handler installed by Init. Zero values fall back to the
// CTIREFINE_JSON_LOG / CTIREFINE_LOG_LEVEL environment variables.
type Options struct {
	JSON   bool
	Level  string
	Writer io.Writer
}

// Init configures a global slog logger. JSON if requested or CTIREFINE_JSON_LOG=1/true/json, else text.
func Init(service string, opts Options) *slog.Logger {
	mode := strings.ToLower(os.Getenv("CTIREFINE_JSON_LOG"))
	jsonMode := opts.JSON || mode == "1" || mode == "true" || mode == "json"
	level := opts.Level
	if level == "" {
		level = os.Getenv("CTIREFINE_LOG_LEVEL")
	}
	w := opts.Writer
	if w == nil {
		// stdout carries extraction results
		w = os.Stderr
	}
	hopts := &slog.HandlerOptions{AddSource: false, Level: ParseLevel(level)}
	var handler slog.Handler
	if jsonMode {
		handler = slog.NewJSONHandler(w, hopts)
	} else {
		handler = slog.NewTextHandler(w, hopts)
	}
	logger := slog.New(handler).With("service", service)
	slog.SetDefault(logger)
	logger.Debug("logging initialized", "json", jsonMode)
	return logger
}

// ParseLevel maps a level name to a slog level, defaulting to info.
func ParseLevel(lvl string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(lvl)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
