package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Init installs the default logger. The level comes from LOG_LEVEL and falls
// back to def. With LOG_FILE set, output is appended to that file instead of
// stderr so it does not interleave with the terminal UI. The returned func
// closes the file.
func Init(def slog.Level) func() {
	var out io.Writer = os.Stderr
	closer := func() {}

	if path := os.Getenv("LOG_FILE"); path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err == nil {
			out = f
			closer = func() { f.Close() }
		}
	}

	slog.SetDefault(New(out, ParseLevel(os.Getenv("LOG_LEVEL"), def)))
	return closer
}

// New returns a text logger writing to w.
func New(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// ParseLevel maps a LOG_LEVEL value to a level, returning def when the value
// is empty or unknown.
func ParseLevel(s string, def slog.Level) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "dev", "development", "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error", "production", "prod":
		return slog.LevelError
	default:
		return def
	}
}
