package ports

import (
	"context"

	"github.com/Gunvolt24/leasepull/internal/domain"
)

// MessageHandler — пользовательская обработка сообщения.
// Ошибка или паника трактуются как domain.Failure. Обработчик обязан быть идемпотентным:
// одно и то же сообщение может прийти повторно.
type MessageHandler interface {
	Handle(ctx context.Context, msg domain.Message) (domain.Outcome, error)
}

// HandlerFunc — адаптер обычной функции к MessageHandler.
type HandlerFunc func(ctx context.Context, msg domain.Message) (domain.Outcome, error)

func (f HandlerFunc) Handle(ctx context.Context, msg domain.Message) (domain.Outcome, error) {
	return f(ctx, msg)
}
