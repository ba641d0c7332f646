package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrConnectivity — брокер/сеть недоступны. Временная ошибка: цикл повторяет с backoff.
	ErrConnectivity = errors.New("broker connectivity error")

	// ErrAck — аренда уже истекла или сообщение брокеру неизвестно. Не повторяется.
	ErrAck = errors.New("acknowledge rejected")

	// ErrInvalidRecord — запись журнала без id сообщения или с неизвестным статусом.
	ErrInvalidRecord = errors.New("invalid delivery record")
)

// HandlerError — сбой пользовательского обработчика (ошибка или паника).
type HandlerError struct {
	MessageID string
	Err       error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("handler failed message_id=%s: %v", e.MessageID, e.Err)
}

func (e *HandlerError) Unwrap() error { return e.Err }

// Connectivity — оборачивает ошибку транспорта в ErrConnectivity, сохраняя исходную причину.
func Connectivity(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrConnectivity, err)
}

// AckRejected — оборачивает причину отказа в подтверждении в ErrAck.
func AckRejected(messageID string, reason error) error {
	if reason == nil {
		return fmt.Errorf("message_id=%s: %w", messageID, ErrAck)
	}
	return fmt.Errorf("message_id=%s: %w: %w", messageID, ErrAck, reason)
}
