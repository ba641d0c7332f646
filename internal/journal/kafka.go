package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Gunvolt24/leasepull/internal/domain"
	"github.com/Gunvolt24/leasepull/internal/ports"
)

var _ ports.DeliveryJournal = (*KafkaJournal)(nil)

// writer — минимальный контракт над kafka.Writer, чтобы подменять его в тестах.
type writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaConfig struct {
	Brokers      []string
	Topic        string
	BatchTimeout time.Duration
	BatchSize    int    // записи пишутся по одной: без 1 каждая ждёт BatchTimeout
	RequiredAcks string // none|one|all
}

func (c *KafkaConfig) writer() *kafka.Writer {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(c.Brokers...),
		Topic:                  c.Topic,
		Balancer:               &kafka.Hash{}, // записи одного сообщения — в одну партицию
		BatchTimeout:           c.BatchTimeout,
		BatchSize:              c.BatchSize,
		AllowAutoTopicCreation: true,
	}
	if w.BatchTimeout <= 0 {
		w.BatchTimeout = 50 * time.Millisecond
	}
	if w.BatchSize <= 0 {
		w.BatchSize = 1
	}

	switch c.RequiredAcks {
	case "none":
		w.RequiredAcks = kafka.RequireNone
	case "all":
		w.RequiredAcks = kafka.RequireAll
	default:
		w.RequiredAcks = kafka.RequireOne
	}
	return w
}

// KafkaJournal — публикует DeliveryRecord как JSON, ключ — message_id.
type KafkaJournal struct {
	w         writer
	topic     string
	closeOnce sync.Once
}

func NewKafkaJournal(cfg *KafkaConfig) (*KafkaJournal, error) {
	if cfg == nil || len(cfg.Brokers) == 0 || cfg.Topic == "" {
		return nil, errors.New("kafka journal: brokers and topic are required")
	}
	return &KafkaJournal{w: cfg.writer(), topic: cfg.Topic}, nil
}

func (j *KafkaJournal) Record(ctx context.Context, rec domain.DeliveryRecord) error {
	value, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal delivery record: %w", err)
	}

	err = j.w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(rec.MessageID),
		Value: value,
		Time:  rec.OccurredAt,
		Headers: []kafka.Header{
			{Key: "status", Value: []byte(rec.Status)},
			{Key: "consumer", Value: []byte(rec.Consumer)},
		},
	})
	if err != nil {
		return fmt.Errorf("kafka write topic=%s: %w", j.topic, err)
	}
	return nil
}

// Close — закрывает writer (идемпотентно).
func (j *KafkaJournal) Close() error {
	var err error
	j.closeOnce.Do(func() { err = j.w.Close() })
	return err
}
