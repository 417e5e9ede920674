package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/lmittmann/tint"
)

// SlogConfig configures the process logger.
type SlogConfig struct {
	// Writer is where logs go. Defaults to os.Stdout.
	Writer io.Writer
	// Level is the minimum level logged. Defaults to info.
	Level slog.Leveler
	// AddSource adds file:line to each record.
	AddSource bool
	// JSON switches to the slog JSON handler.
	JSON bool
	// NoColor disables ANSI colors in text mode.
	NoColor bool
}

// NewSlog creates the process logger: colored text via tint by default,
// JSON when requested.
func NewSlog(cfg SlogConfig) *slog.Logger {
	if cfg.Writer == nil {
		cfg.Writer = os.Stdout
	}
	if cfg.Level == nil {
		cfg.Level = slog.LevelInfo
	}

	var handler slog.Handler
	if cfg.JSON {
		handler = slog.NewJSONHandler(cfg.Writer, &slog.HandlerOptions{
			AddSource: cfg.AddSource,
			Level:     cfg.Level,
		})
	} else {
		handler = tint.NewHandler(cfg.Writer, &tint.Options{
			Level:      cfg.Level,
			AddSource:  cfg.AddSource,
			TimeFormat: "2006-01-02 15:04:05",
			NoColor:    cfg.NoColor,
		})
	}
	return slog.New(handler)
}

// ParseLevel maps a config string to a slog level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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
