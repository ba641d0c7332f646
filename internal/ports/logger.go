package ports

import "context"

// Logger — логгер с контекстом: реализация достаёт из ctx request/trace/message id и имя потребителя.
type Logger interface {
	Infof(ctx context.Context, format string, args ...any)
	Warnf(ctx context.Context, format string, args ...any)
	Errorf(ctx context.Context, format string, args ...any)
}
