package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/V4T54L/tradedesk/internal/adapter/pii"
)

// New builds the process JSON logger. Attributes named in redact are
// replaced before they reach the output.
func New(level string, redact ...string) *slog.Logger {
	return NewWithWriter(os.Stdout, level, redact...)
}

func NewWithWriter(w io.Writer, level string, redact ...string) *slog.Logger {
	r := pii.NewRedactor(redact)
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       ParseLevel(level),
		ReplaceAttr: r.ReplaceAttr,
	})
	return slog.New(h)
}

// ParseLevel maps a config string to a slog level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
