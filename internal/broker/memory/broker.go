// Package memory — брокер в памяти процесса с арендой (visibility timeout).
// Нужен для тестов и драйвера memory: повторная доставка после истечения аренды,
// long-poll, подсчёт попыток доставки.
package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Gunvolt24/leasepull/internal/domain"
	"github.com/Gunvolt24/leasepull/internal/ports"
)

var _ ports.BrokerClient = (*Broker)(nil)

// pollTick — как часто long-poll перепроверяет истёкшие аренды.
const pollTick = 10 * time.Millisecond

type entry struct {
	msg       domain.Message
	attempts  int
	handle    string
	visibleAt time.Time
}

// Broker — очередь FIFO; полученные сообщения скрыты на время аренды.
type Broker struct {
	mu         sync.Mutex
	now        func() time.Time
	visibility time.Duration
	topic      string

	ready    []*entry
	inflight map[string]*entry // receipt handle → доставка
	attempts map[string]int    // message id → число доставок
	acked    []string

	// notify закрывается и заменяется при появлении новых сообщений.
	notify chan struct{}
}

type Option func(*Broker)

// WithClock — часы для проверки аренд (для тестов).
func WithClock(now func() time.Time) Option {
	return func(b *Broker) { b.now = now }
}

// WithTopic — топик, который проставляется сообщениям без топика.
func WithTopic(topic string) Option {
	return func(b *Broker) { b.topic = topic }
}

// New — visibility: длительность аренды. Должна совпадать с InvisibilityDuration потребителя.
func New(visibility time.Duration, opts ...Option) *Broker {
	b := &Broker{
		now:        time.Now,
		visibility: visibility,
		topic:      "memory",
		inflight:   make(map[string]*entry),
		attempts:   make(map[string]int),
		notify:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Enqueue — положить сообщение в очередь; пустой ID заменяется на uuid. Возвращает ID.
func (b *Broker) Enqueue(msg domain.Message) string {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Topic == "" {
		msg.Topic = b.topic
	}
	if msg.BornAt.IsZero() {
		msg.BornAt = b.now()
	}

	b.mu.Lock()
	b.ready = append(b.ready, &entry{msg: msg})
	b.wakeLocked()
	b.mu.Unlock()

	return msg.ID
}

// FetchBatch — до maxMessageNums сообщений; ждёт не дольше waitDuration.
func (b *Broker) FetchBatch(ctx context.Context, maxMessageNums int, waitDuration time.Duration) (domain.Batch, error) {
	if maxMessageNums < 1 {
		return nil, errors.New("memory broker: maxMessageNums must be positive")
	}

	deadline := time.NewTimer(waitDuration)
	defer deadline.Stop()
	tick := time.NewTicker(pollTick)
	defer tick.Stop()

	for {
		b.mu.Lock()
		batch := b.takeLocked(maxMessageNums)
		notify := b.notify
		b.mu.Unlock()

		if len(batch) > 0 || waitDuration <= 0 {
			return batch, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return domain.Batch{}, nil
		case <-notify:
		case <-tick.C:
		}
	}
}

// Acknowledge — удаляет доставку. Неизвестный дескриптор или истёкшая аренда → ErrAck.
func (b *Broker) Acknowledge(ctx context.Context, msg domain.Message) error {
	if err := ctx.Err(); err != nil {
		return domain.Connectivity("memory ack", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	handle := msg.Handle()
	e, ok := b.inflight[handle]
	if !ok {
		return domain.AckRejected(msg.ID, errors.New("unknown receipt handle"))
	}
	if !b.now().Before(e.visibleAt) {
		b.requeueLocked(handle, e)
		return domain.AckRejected(msg.ID, errors.New("lease expired"))
	}

	delete(b.inflight, handle)
	b.acked = append(b.acked, e.msg.ID)
	return nil
}

// Pending — сообщения, ещё не подтверждённые (в очереди и в аренде).
func (b *Broker) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.ready) + len(b.inflight)
}

// Acked — ID подтверждённых сообщений в порядке подтверждения.
func (b *Broker) Acked() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.acked...)
}

// DeliveryAttempts — сколько раз сообщение было выдано.
func (b *Broker) DeliveryAttempts(id string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.attempts[id]
}

func (b *Broker) takeLocked(limit int) domain.Batch {
	now := b.now()

	// Истёкшие аренды возвращаются в очередь.
	for handle, e := range b.inflight {
		if !now.Before(e.visibleAt) {
			b.requeueLocked(handle, e)
		}
	}

	n := min(limit, len(b.ready))
	if n == 0 {
		return nil
	}

	batch := make(domain.Batch, 0, n)
	for _, e := range b.ready[:n] {
		b.attempts[e.msg.ID]++
		e.attempts = b.attempts[e.msg.ID]
		e.handle = uuid.NewString()
		e.visibleAt = now.Add(b.visibility)
		b.inflight[e.handle] = e

		m := e.msg
		m.ReceiptHandle = e.handle
		m.DeliveryAttempt = e.attempts
		batch = append(batch, m)
	}
	b.ready = append(b.ready[:0:0], b.ready[n:]...)
	return batch
}

func (b *Broker) requeueLocked(handle string, e *entry) {
	delete(b.inflight, handle)
	e.handle = ""
	b.ready = append(b.ready, e)
	b.wakeLocked()
}

func (b *Broker) wakeLocked() {
	close(b.notify)
	b.notify = make(chan struct{})
}
