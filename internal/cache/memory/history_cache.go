// Package memory — LRU-кэш истории доставок с TTL (скользящее продление при чтении).
package memory

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/Gunvolt24/leasepull/internal/domain"
	"github.com/Gunvolt24/leasepull/internal/ports"
	"github.com/Gunvolt24/leasepull/pkg/metrics"
)

var _ ports.HistoryCache = (*LRUCacheTTL)(nil)

type entry struct {
	id        string
	records   []domain.DeliveryRecord
	expiresAt time.Time
}

type LRUCacheTTL struct {
	capacity int
	ttl      time.Duration
	now      func() time.Time

	ll    *list.List
	index map[string]*list.Element

	mu sync.Mutex
}

// NewLRUCacheTTL — capacity: число сообщений (не записей); ttl <= 0 — без истечения.
func NewLRUCacheTTL(capacity int, ttl time.Duration) *LRUCacheTTL {
	if capacity <= 0 {
		capacity = 1
	}
	return &LRUCacheTTL{
		capacity: capacity,
		ttl:      ttl,
		now:      time.Now,
		ll:       list.New(),
		index:    make(map[string]*list.Element),
	}
}

func (c *LRUCacheTTL) Get(_ context.Context, messageID string) ([]domain.DeliveryRecord, bool) {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.index[messageID]
	if !ok {
		metrics.CacheOps.WithLabelValues("miss").Inc()
		return nil, false
	}
	ent := elem.Value.(*entry)
	if c.isExpired(ent, now) {
		metrics.CacheOps.WithLabelValues("expired").Inc()
		c.removeElement(elem)
		metrics.CacheSize.Set(float64(len(c.index)))
		return nil, false
	}
	c.ll.MoveToFront(elem)

	if c.ttl > 0 {
		ent.expiresAt = c.expiryFrom(now)
	}

	metrics.CacheOps.WithLabelValues("hit").Inc()
	return cloneRecords(ent.records), true
}

func (c *LRUCacheTTL) Set(_ context.Context, messageID string, records []domain.DeliveryRecord) error {
	if messageID == "" {
		return nil
	}
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.setLocked(messageID, cloneRecords(records), now)
	return nil
}

func (c *LRUCacheTTL) Invalidate(_ context.Context, messageID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.index[messageID]; ok {
		c.removeElement(elem)
		metrics.CacheOps.WithLabelValues("invalidated").Inc()
		metrics.CacheSize.Set(float64(len(c.index)))
	}
}

// WarmUp — записи группируются по message_id с сохранением порядка.
// Если записей больше, чем помещается, в кэше остаются сообщения, встреченные первыми.
func (c *LRUCacheTTL) WarmUp(ctx context.Context, records []domain.DeliveryRecord) error {
	grouped := make(map[string][]domain.DeliveryRecord)
	order := make([]string, 0)
	for i := range records {
		id := records[i].MessageID
		if id == "" {
			continue
		}
		if _, seen := grouped[id]; !seen {
			order = append(order, id)
		}
		grouped[id] = append(grouped[id], records[i])
	}

	// В обратном порядке: первые встреченные окажутся самыми "свежими" в LRU.
	for i := len(order) - 1; i >= 0; i-- {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := c.Set(ctx, order[i], grouped[order[i]]); err != nil {
			return err
		}
	}
	return nil
}

// Len — число закэшированных сообщений.
func (c *LRUCacheTTL) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.index)
}
