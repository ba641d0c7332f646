package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Gunvolt24/leasepull/internal/domain"
	"github.com/Gunvolt24/leasepull/pkg/metrics"
)

// project сохраняет одну запись журнала. false — контекст отменён до успешного сохранения.
func (c *Consumer) project(ctx context.Context, topic string, msg *kafka.Message) bool {
	rec, err := decodeRecord(msg)
	if err != nil {
		metrics.JournalSinkMessages.WithLabelValues(topic, "skipped").Inc()
		c.log.Warnf(ctx, "invalid journal record offset=%d: %v (skipped)", msg.Offset, err)
		return true
	}

	for attempt := 1; ; attempt++ {
		ctxTimeout, cancel := context.WithTimeout(ctx, c.processTimeout)
		err = c.saver.Record(ctxTimeout, rec)
		cancel()

		switch {
		case err == nil:
			metrics.JournalSinkMessages.WithLabelValues(topic, "projected").Inc()
			return true
		case errors.Is(err, domain.ErrInvalidRecord):
			metrics.JournalSinkMessages.WithLabelValues(topic, "skipped").Inc()
			c.log.Warnf(ctx, "rejected journal record offset=%d message_id=%s: %v (skipped)", msg.Offset, rec.MessageID, err)
			return true
		}

		// Временная ошибка (БД/сеть/таймаут): повторяем ту же запись
		metrics.JournalSinkMessages.WithLabelValues(topic, "failed").Inc()
		delay := c.backoff.Next(attempt)
		c.log.Warnf(ctx, "save failed offset=%d message_id=%s attempt=%d: %v (retry in %s)",
			msg.Offset, rec.MessageID, attempt, err, delay)
		if !sleepWithBackoff(ctx, delay) {
			return false
		}
	}
}

// decodeRecord — JSON-значение записи; ключ сообщения Kafka подставляется как message_id, если его нет в теле.
func decodeRecord(msg *kafka.Message) (domain.DeliveryRecord, error) {
	var rec domain.DeliveryRecord
	if err := json.Unmarshal(msg.Value, &rec); err != nil {
		return domain.DeliveryRecord{}, fmt.Errorf("%w: %w", domain.ErrInvalidRecord, err)
	}
	if rec.MessageID == "" {
		rec.MessageID = string(msg.Key)
	}
	if err := rec.Validate(); err != nil {
		return domain.DeliveryRecord{}, err
	}
	return rec, nil
}

// commitSafely пытается закоммитить оффсет и залогировать ошибку.
func (c *Consumer) commitSafely(ctx context.Context, msg *kafka.Message) {
	if commitErr := c.reader.CommitMessages(ctx, *msg); commitErr != nil {
		c.log.Warnf(ctx, "commit failed offset=%d: %v", msg.Offset, commitErr)
	}
}

// sleepWithBackoff ждет backoff или останавливается по контексту.
func sleepWithBackoff(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
