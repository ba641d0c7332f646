// Пакет ctxmeta — нейтральный слой для работы с метаданными, которые
// прокидываются через context.Context (request_id, message_id, consumer, trace_id).
// Идея: HTTP-слой, потребитель и логгер зависят от небольшого общего пакета, но не друг от друга.
package ctxmeta

import "context"

type ctxKey string

const (
	// Ключи контекста (неэкспортируемые типы — чтобы избежать коллизий).
	KeyRequestID ctxKey = "request_id"
	KeyMessageID ctxKey = "message_id"
	KeyConsumer  ctxKey = "consumer"
)

// WithRequestID кладёт request_id в контекст (если пусто — ничего не делает).
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return withString(ctx, KeyRequestID, requestID)
}

// RequestIDFromContext достаёт request_id из контекста.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	return stringFrom(ctx, KeyRequestID)
}

// WithMessageID кладёт message_id обрабатываемого сообщения.
func WithMessageID(ctx context.Context, messageID string) context.Context {
	return withString(ctx, KeyMessageID, messageID)
}

// MessageIDFromContext достаёт message_id из контекста.
func MessageIDFromContext(ctx context.Context) (string, bool) {
	return stringFrom(ctx, KeyMessageID)
}

// WithConsumer кладёт имя цикла потребления.
func WithConsumer(ctx context.Context, name string) context.Context {
	return withString(ctx, KeyConsumer, name)
}

// ConsumerFromContext достаёт имя цикла потребления.
func ConsumerFromContext(ctx context.Context) (string, bool) {
	return stringFrom(ctx, KeyConsumer)
}

func withString(ctx context.Context, key ctxKey, v string) context.Context {
	if ctx == nil || v == "" {
		return ctx
	}
	return context.WithValue(ctx, key, v)
}

func stringFrom(ctx context.Context, key ctxKey) (string, bool) {
	if ctx == nil {
		return "", false
	}
	if v, ok := ctx.Value(key).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
