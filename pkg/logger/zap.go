package logger

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Gunvolt24/kafka2hec/pkg/ctxmeta"
)

type ZapLogger struct {
	base  *zap.Logger
	sugar *zap.SugaredLogger
}

// NewZapLogger — обёртка над zap: dev/prod энкодер + уровень из конфига.
// Возвращает логгер, функцию очистки (Sync) и ошибку.
func NewZapLogger(dev bool, level string) (*ZapLogger, func() error, error) {
	lvl, err := parseLevel(level)
	if err != nil {
		return nil, nil, err
	}

	var cfg zap.Config
	if dev {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	logger, err := cfg.Build()
	if err != nil {
		return nil, nil, err
	}

	loggerWrap := &ZapLogger{
		base:  logger,
		sugar: logger.Sugar(),
	}

	cleanup := func() error { return loggerWrap.base.Sync() }
	return loggerWrap, cleanup, nil
}

// parseLevel принимает уровни zap и их написание из старых конфигов
// коллектора ("logging.WARNING" и т.п.).
func parseLevel(level string) (zapcore.Level, error) {
	s := strings.ToLower(strings.TrimSpace(level))
	s = strings.TrimPrefix(s, "logging.")

	switch s {
	case "":
		return zapcore.WarnLevel, nil
	case "warning":
		s = "warn"
	case "critical":
		s = "fatal"
	}

	lvl, err := zapcore.ParseLevel(s)
	if err != nil {
		return zapcore.InvalidLevel, fmt.Errorf("loglevel %q: %w", level, err)
	}
	return lvl, nil
}

// withMeta добавляет метаданные контекста (request_id служебного сервера,
// trace/span id доставки) структурными полями.
func (z *ZapLogger) withMeta(ctx context.Context) *zap.SugaredLogger {
	s := z.sugar
	if rid, ok := ctxmeta.RequestIDFromContext(ctx); ok {
		s = s.With("request_id", rid)
	}
	if tid, ok := ctxmeta.TraceIDFromContext(ctx); ok {
		s = s.With("trace_id", tid)
	}
	if sid, ok := ctxmeta.SpanIDFromContext(ctx); ok {
		s = s.With("span_id", sid)
	}
	return s
}

func (z *ZapLogger) Infof(ctx context.Context, format string, args ...any) {
	z.withMeta(ctx).Infof(format, args...)
}
func (z *ZapLogger) Warnf(ctx context.Context, format string, args ...any) {
	z.withMeta(ctx).Warnf(format, args...)
}
func (z *ZapLogger) Errorf(ctx context.Context, format string, args ...any) {
	z.withMeta(ctx).Errorf(format, args...)
}

func (z *ZapLogger) Base() *zap.Logger           { return z.base }
func (z *ZapLogger) Sugared() *zap.SugaredLogger { return z.sugar }
