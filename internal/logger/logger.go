package logger

import (
	"io"
	"log/slog"
	"strings"
)

// Service holds the logger and its dynamic level controller.
type Service struct {
	*slog.Logger
	level *slog.LevelVar
}

// SetLevel dynamically changes the logging level.
func (s *Service) SetLevel(level string) {
	s.level.Set(parseLevel(level))
}

// WithComponent returns a child service tagged with a component name.
// The child shares the parent's level controller.
func (s *Service) WithComponent(name string) *Service {
	return &Service{
		Logger: s.Logger.With("component", name),
		level:  s.level,
	}
}

// New creates a new logging service.
func New(level, format string, writer io.Writer) *Service {
	levelVar := &slog.LevelVar{}
	levelVar.Set(parseLevel(level))

	opts := &slog.HandlerOptions{
		Level: levelVar,
	}

	var handler slog.Handler
	switch strings.ToLower(format) {
	case "json":
		handler = slog.NewJSONHandler(writer, opts)
	default:
		handler = slog.NewTextHandler(writer, opts)
	}

	return &Service{
		Logger: slog.New(handler),
		level:  levelVar,
	}
}

// Nop returns a service that discards everything. Intended for tests and
// for callers that construct components without a logger.
func Nop() *Service {
	return New("error", "text", io.Discard)
}

// parseLevel converts a string to a slog.Level.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
