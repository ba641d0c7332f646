package consumer

import (
	"context"
	"sync"
	"time"

	"github.com/Gunvolt24/leasepull/internal/domain"
	"github.com/Gunvolt24/leasepull/internal/ports"
	"github.com/Gunvolt24/leasepull/pkg/ctxmeta"
	"github.com/Gunvolt24/leasepull/pkg/metrics"
)

// journalQueue — запись в журнал вне пути обработки: обработка только кладёт запись в
// ограниченный буфер, одна горутина пишет в журнал. Переполнение = запись теряется
// (исход уже есть в логе обработки), аренды следующих сообщений не страдают.
type journalQueue struct {
	journal ports.DeliveryJournal
	log     ports.Logger
	name    string
	timeout time.Duration // на одну запись

	mu     sync.RWMutex
	closed bool
	ch     chan domain.DeliveryRecord
	done   chan struct{}

	// ctx отменяется, если Close не дождался опустошения буфера.
	ctx    context.Context
	cancel context.CancelFunc
}

func newJournalQueue(j ports.DeliveryJournal, size int, timeout time.Duration, name string, log ports.Logger) *journalQueue {
	ctx, cancel := context.WithCancel(context.Background())
	q := &journalQueue{
		journal: j,
		log:     log,
		name:    name,
		timeout: timeout,
		ch:      make(chan domain.DeliveryRecord, size),
		done:    make(chan struct{}),
		ctx:     ctx,
		cancel:  cancel,
	}
	go q.drain()
	return q
}

// enqueue — не блокируется.
func (q *journalQueue) enqueue(ctx context.Context, rec domain.DeliveryRecord) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		q.drop(ctx, rec, "journal closed")
		return
	}
	select {
	case q.ch <- rec:
	default:
		q.drop(ctx, rec, "journal queue full")
	}
}

func (q *journalQueue) drop(ctx context.Context, rec domain.DeliveryRecord, reason string) {
	metrics.JournalRecords.WithLabelValues(q.name, "dropped").Inc()
	q.log.Warnf(ctx, "delivery record dropped status=%s: %s", rec.Status, reason)
}

func (q *journalQueue) drain() {
	defer close(q.done)

	for rec := range q.ch {
		ctx, cancel := context.WithTimeout(q.ctx, q.timeout)
		err := q.journal.Record(ctx, rec)
		cancel()

		if err != nil {
			metrics.JournalRecords.WithLabelValues(q.name, "failed").Inc()
			logCtx := ctxmeta.WithMessageID(ctxmeta.WithConsumer(context.Background(), q.name), rec.MessageID)
			q.log.Warnf(logCtx, "delivery journal record failed status=%s: %v", rec.Status, err)
			continue
		}
		metrics.JournalRecords.WithLabelValues(q.name, "written").Inc()
	}
}

// close — новые записи больше не принимаются; ждёт опустошения буфера до отмены ctx.
// По истечении ctx оставшиеся записи пишутся с отменённым контекстом (быстрый отказ).
func (q *journalQueue) close(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.ch)
	}
	q.mu.Unlock()

	select {
	case <-q.done:
		return nil
	case <-ctx.Done():
		q.cancel()
		return ctx.Err()
	}
}
