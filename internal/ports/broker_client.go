package ports

import (
	"context"
	"time"

	"github.com/Gunvolt24/leasepull/internal/domain"
)

// BrokerClient — контракт брокера с арендой (visibility timeout).
//
// FetchBatch блокируется не дольше waitDuration и возвращает пустой батч по таймауту.
// Сетевые сбои оборачиваются в domain.ErrConnectivity.
// Acknowledge возвращает domain.ErrAck, если аренда истекла или сообщение неизвестно.
type BrokerClient interface {
	FetchBatch(ctx context.Context, maxMessageNums int, waitDuration time.Duration) (domain.Batch, error)
	Acknowledge(ctx context.Context, msg domain.Message) error
}
