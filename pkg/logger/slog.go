package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
)

type SlogLogger struct {
	logger *slog.Logger
}

type SlogEnvironment string

const (
	EnvLocal SlogEnvironment = "local"
	EnvDev   SlogEnvironment = "dev"
	EnvProd  SlogEnvironment = "prod"
)

func NewSlogLogger(env SlogEnvironment) *SlogLogger {
	var slogger *slog.Logger

	switch env {
	case EnvLocal:
		slogger = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case EnvDev:
		slogger = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	default:
		slogger = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	}

	return &SlogLogger{
		logger: slogger,
	}
}

// SetupLogger is the entrypoint used by the binaries.
func SetupLogger(env string) *SlogLogger {
	return NewSlogLogger(SlogEnvironment(env))
}

// NewFromSlog wraps an already configured slog logger, e.g. one writing to a test buffer.
func NewFromSlog(l *slog.Logger) *SlogLogger {
	return &SlogLogger{logger: l}
}

func NewDiscard() *SlogLogger {
	return &SlogLogger{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func (s *SlogLogger) Slog() *slog.Logger {
	return s.logger
}

func (s *SlogLogger) With(fields ...any) Logger {
	return &SlogLogger{logger: s.logger.With(fields...)}
}

func (s *SlogLogger) Debug(msg string, fields ...any) {
	s.logger.Debug(msg, fields...)
}

func (s *SlogLogger) Info(msg string, fields ...any) {
	s.logger.Info(msg, fields...)
}

func (s *SlogLogger) Warn(msg string, fields ...any) {
	s.logger.Warn(msg, fields...)
}

func (s *SlogLogger) Error(msg string, fields ...any) {
	s.logger.Error(msg, fields...)
}

func (s *SlogLogger) DebugContext(ctx context.Context, msg string, fields ...any) {
	s.logger.DebugContext(ctx, msg, fields...)
}

func (s *SlogLogger) InfoContext(ctx context.Context, msg string, fields ...any) {
	s.logger.InfoContext(ctx, msg, fields...)
}

func (s *SlogLogger) WarnContext(ctx context.Context, msg string, fields ...any) {
	s.logger.WarnContext(ctx, msg, fields...)
}

func (s *SlogLogger) ErrorContext(ctx context.Context, msg string, fields ...any) {
	s.logger.ErrorContext(ctx, msg, fields...)
}
