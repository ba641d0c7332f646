// Package lease — локальный (рекомендательный) учёт аренд сообщений в обработке.
// Брокер остаётся источником истины; трекер нужен, чтобы не тратить работу
// на сообщение, которое уже нельзя подтвердить.
package lease

import (
	"sync"
	"time"

	"github.com/Gunvolt24/leasepull/internal/domain"
)

// Tracker — message_id → аренда. Принадлежит одному процессору.
type Tracker struct {
	mu     sync.Mutex
	leases map[string]domain.Lease
	margin time.Duration
	now    func() time.Time
}

// Option — настройка Tracker.
type Option func(*Tracker)

// WithClock — источник времени (для тестов).
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		if now != nil {
			t.now = now
		}
	}
}

// WithSafetyMargin — аренда считается истекшей, когда до дедлайна осталось не больше margin.
func WithSafetyMargin(margin time.Duration) Option {
	return func(t *Tracker) {
		if margin > 0 {
			t.margin = margin
		}
	}
}

// NewTracker — конструктор.
func NewTracker(opts ...Option) *Tracker {
	t := &Tracker{
		leases: make(map[string]domain.Lease),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Now — текущее время по часам трекера.
func (t *Tracker) Now() time.Time { return t.now() }

// Register — фиксирует аренду в момент получения батча.
func (t *Tracker) Register(messageID string, fetchedAt time.Time, invisibility time.Duration) domain.Lease {
	l := domain.Lease{MessageID: messageID, FetchedAt: fetchedAt, Invisibility: invisibility}

	t.mu.Lock()
	t.leases[messageID] = l
	t.mu.Unlock()

	return l
}

// Lease — аренда сообщения, если она зарегистрирована.
func (t *Tracker) Lease(messageID string) (domain.Lease, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	l, ok := t.leases[messageID]
	return l, ok
}

// Remaining — остаток аренды; отрицательный — истекла.
// Для незарегистрированного сообщения возвращается 0: подтверждать его нельзя.
func (t *Tracker) Remaining(messageID string) time.Duration {
	l, ok := t.Lease(messageID)
	if !ok {
		return 0
	}
	return l.Remaining(t.now())
}

// IsExpired — true, если аренды нет или до дедлайна осталось не больше safety margin.
func (t *Tracker) IsExpired(messageID string) bool {
	l, ok := t.Lease(messageID)
	if !ok {
		return true
	}
	return l.Remaining(t.now()) <= t.margin
}

// Remove — снимает аренду (после ack или отказа от сообщения).
func (t *Tracker) Remove(messageID string) {
	t.mu.Lock()
	delete(t.leases, messageID)
	t.mu.Unlock()
}

// Len — число сообщений в обработке.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.leases)
}
