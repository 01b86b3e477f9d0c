// Package logging wires log/slog for the whole process. Configure is called
// once from main; packages obtain named loggers with GetLogger.
package logging

import (
	"io"
	"log"
	"log/slog"
	"os"
	"strings"
	"sync"
)

const (
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
)

type (
	Logger = *slog.Logger
	Level  = slog.Level
)

var (
	Group = slog.Group

	config = Config{Output: os.Stderr, Level: "info"}
	mu     sync.RWMutex
)

type Config struct {
	AppName string
	Level   string
	JSON    bool
	Output  io.Writer
}

// Configure replaces the global logging configuration. Loggers obtained
// before the call keep their previous handler.
func Configure(cfg Config) {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}

	mu.Lock()
	config = cfg
	mu.Unlock()

	slog.SetDefault(GetLogger("main"))
}

// GetLogger returns a logger tagged with the given component name.
func GetLogger(name string) Logger {
	mu.RLock()
	cfg := config
	mu.RUnlock()

	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}

	var handler slog.Handler
	if cfg.JSON {
		handler = slog.NewJSONHandler(cfg.Output, opts)
	} else {
		handler = slog.NewTextHandler(cfg.Output, opts)
	}

	logger := slog.New(handler)
	if cfg.AppName != "" {
		logger = logger.With("app", cfg.AppName)
	}

	return logger.With("logger", name)
}

// Discard returns a logger that drops everything.
func Discard() Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// StdLogger adapts a slog logger for APIs that want a *log.Logger.
func StdLogger(logger Logger, level Level) *log.Logger {
	return slog.NewLogLogger(logger.Handler(), level)
}

func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}
