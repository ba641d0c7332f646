// Package push — потребление в режиме, когда брокер сам вызывает обработку (callback).
// Логика аренды/обработки/подтверждения та же, что у pull-цикла.
package push

import (
	"context"
	"sync"

	"github.com/Gunvolt24/leasepull/internal/consumer"
	"github.com/Gunvolt24/leasepull/internal/domain"
	"github.com/Gunvolt24/leasepull/internal/ports"
)

var _ ports.StatsProvider = (*Dispatcher)(nil)

// AckFunc — подтверждение, которое предоставляет транспорт для конкретной доставки.
type AckFunc = consumer.AckFunc

// Dispatcher — последовательная доставка сообщений одному обработчику.
type Dispatcher struct {
	mu   sync.Mutex
	proc *consumer.Processor
}

// NewDispatcher — cfg используется для длительности аренды, таймаута ack и имени.
func NewDispatcher(handler ports.MessageHandler, cfg consumer.Config, log ports.Logger, opts ...consumer.Option) (*Dispatcher, error) {
	proc, err := consumer.NewProcessor(nil, handler, cfg, log, opts...)
	if err != nil {
		return nil, err
	}
	return &Dispatcher{proc: proc}, nil
}

// Deliver — обрабатывает одно сообщение и возвращает его терминальный исход.
// Вызовы сериализуются: callback-и транспорта могут приходить из разных горутин.
func (d *Dispatcher) Deliver(ctx context.Context, msg domain.Message, ack AckFunc) domain.DeliveryStatus {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.proc.Deliver(ctx, msg, ack)
}

// Close — дописывает буфер журнала доставок; после Close исходы в журнал не попадают.
func (d *Dispatcher) Close(ctx context.Context) error {
	return d.proc.Close(ctx)
}

// Snapshots — счётчики диспетчера (для /stats).
func (d *Dispatcher) Snapshots() []domain.ConsumerStats {
	s := d.proc.Stats()
	s.State = "push"
	return []domain.ConsumerStats{s}
}
