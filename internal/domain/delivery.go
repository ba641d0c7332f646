package domain

import (
	"fmt"
	"time"
)

// DeliveryStatus — терминальный исход одной попытки доставки.
type DeliveryStatus string

const (
	StatusAcked            DeliveryStatus = "acked"             // обработано и подтверждено
	StatusAckLost          DeliveryStatus = "ack_lost"          // обработано, но ack не прошёл
	StatusHandlerFailed    DeliveryStatus = "handler_failed"    // обработчик вернул Failure/ошибку
	StatusAbandonedExpired DeliveryStatus = "abandoned_expired" // аренда истекла, ack не отправлялся
)

// DeliveryRecord — запись журнала доставок: по ней оператор восстанавливает историю сообщения.
type DeliveryRecord struct {
	MessageID  string         `json:"message_id"`
	Consumer   string         `json:"consumer"`
	Topic      string         `json:"topic,omitempty"`
	Status     DeliveryStatus `json:"status"`
	Attempt    int            `json:"attempt"`
	Detail     string         `json:"detail,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Known — статус из известного набора.
func (s DeliveryStatus) Known() bool {
	switch s {
	case StatusAcked, StatusAckLost, StatusHandlerFailed, StatusAbandonedExpired:
		return true
	}
	return false
}

// Validate — минимальная проверка перед сохранением.
func (r *DeliveryRecord) Validate() error {
	if r.MessageID == "" {
		return fmt.Errorf("%w: message_id is required", ErrInvalidRecord)
	}
	if !r.Status.Known() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidRecord, r.Status)
	}
	if r.Attempt < 0 {
		return fmt.Errorf("%w: negative attempt %d", ErrInvalidRecord, r.Attempt)
	}
	return nil
}
