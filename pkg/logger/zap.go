package logger

import (
	"context"

	"go.uber.org/zap"

	"github.com/Gunvolt24/leasepull/pkg/ctxmeta"
)

type ZapLogger struct {
	base   *zap.Logger
	sugar  *zap.SugaredLogger
	isProd bool
}

func NewZapLogger(isProd bool) (*ZapLogger, func() error, error) {
	var (
		logger *zap.Logger
		err    error
	)

	if isProd {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}

	if err != nil {
		return nil, nil, err
	}

	loggerWrap := FromZap(logger)
	loggerWrap.isProd = isProd

	cleanup := func() error { return loggerWrap.base.Sync() }
	return loggerWrap, cleanup, nil
}

// FromZap — обёртка над готовым *zap.Logger (например, zaptest/zap.NewNop в тестах).
func FromZap(base *zap.Logger) *ZapLogger {
	return &ZapLogger{base: base, sugar: base.Sugar()}
}

func (z *ZapLogger) Infof(ctx context.Context, format string, args ...any) {
	z.withContext(ctx).Infof(format, args...)
}
func (z *ZapLogger) Warnf(ctx context.Context, format string, args ...any) {
	z.withContext(ctx).Warnf(format, args...)
}
func (z *ZapLogger) Errorf(ctx context.Context, format string, args ...any) {
	z.withContext(ctx).Errorf(format, args...)
}

func (z *ZapLogger) Base() *zap.Logger           { return z.base }
func (z *ZapLogger) Sugared() *zap.SugaredLogger { return z.sugar }

// withContext — добавляет к записи метаданные из контекста (consumer, message_id, request_id, trace_id).
func (z *ZapLogger) withContext(ctx context.Context) *zap.SugaredLogger {
	fields := contextFields(ctx)
	if len(fields) == 0 {
		return z.sugar
	}
	return z.sugar.With(fields...)
}

func contextFields(ctx context.Context) []any {
	if ctx == nil {
		return nil
	}

	var fields []any
	if v, ok := ctxmeta.ConsumerFromContext(ctx); ok {
		fields = append(fields, zap.String("consumer", v))
	}
	if v, ok := ctxmeta.MessageIDFromContext(ctx); ok {
		fields = append(fields, zap.String("message_id", v))
	}
	if v, ok := ctxmeta.RequestIDFromContext(ctx); ok {
		fields = append(fields, zap.String("request_id", v))
	}
	if v, ok := ctxmeta.TraceIDFromContext(ctx); ok {
		fields = append(fields, zap.String("trace_id", v))
	}
	return fields
}
