package memory

import (
	"container/list"
	"time"

	"github.com/Gunvolt24/leasepull/internal/domain"
	"github.com/Gunvolt24/leasepull/pkg/metrics"
)

func (c *LRUCacheTTL) setLocked(id string, records []domain.DeliveryRecord, now time.Time) {
	if elem, ok := c.index[id]; ok {
		ent := elem.Value.(*entry)
		ent.records = records
		ent.expiresAt = c.expiryFrom(now)
		c.ll.MoveToFront(elem)
		return
	}

	c.pruneExpiredFromBack(now)

	elem := c.ll.PushFront(&entry{
		id:        id,
		records:   records,
		expiresAt: c.expiryFrom(now),
	})
	c.index[id] = elem
	metrics.CacheSize.Set(float64(len(c.index)))

	if c.ll.Len() > c.capacity {
		c.evictLRU()
	}
}

// evictLRU — удаляет наименее используемый элемент.
func (c *LRUCacheTTL) evictLRU() {
	if back := c.ll.Back(); back != nil {
		c.removeElement(back)
		metrics.CacheOps.WithLabelValues("evicted").Inc()
		metrics.CacheSize.Set(float64(len(c.index)))
	}
}

func (c *LRUCacheTTL) removeElement(elem *list.Element) {
	ent := elem.Value.(*entry)
	delete(c.index, ent.id)
	c.ll.Remove(elem)
}

func (c *LRUCacheTTL) isExpired(ent *entry, now time.Time) bool {
	if c.ttl <= 0 {
		return false
	}
	return now.After(ent.expiresAt)
}

func (c *LRUCacheTTL) expiryFrom(now time.Time) time.Time {
	if c.ttl <= 0 {
		return time.Time{}
	}
	return now.Add(c.ttl)
}

// pruneExpiredFromBack — с хвоста удаляются истёкшие, пока не встретится живой.
func (c *LRUCacheTTL) pruneExpiredFromBack(now time.Time) {
	if c.ttl <= 0 {
		return
	}
	for {
		back := c.ll.Back()
		if back == nil {
			return
		}
		ent := back.Value.(*entry)
		if !now.After(ent.expiresAt) {
			return
		}
		c.removeElement(back)
		metrics.CacheOps.WithLabelValues("expired").Inc()
		metrics.CacheSize.Set(float64(len(c.index)))
	}
}

// cloneRecords — копия среза: записи из значений, внутренних ссылок нет.
func cloneRecords(records []domain.DeliveryRecord) []domain.DeliveryRecord {
	if records == nil {
		return []domain.DeliveryRecord{}
	}
	return append([]domain.DeliveryRecord(nil), records...)
}
