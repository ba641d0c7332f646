package kafka

import (
	"context"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Gunvolt24/leasepull/internal/consumer"
	"github.com/Gunvolt24/leasepull/internal/domain"
	"github.com/Gunvolt24/leasepull/internal/ports"
	"github.com/Gunvolt24/leasepull/pkg/metrics"
)

// reader — минимальный контракт над источником (kafka.Reader),
// чтобы легко подменять его моками в тестах.
type reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Config() kafka.ReaderConfig
	Close() error
}

// recordSaver — куда проецируются записи журнала (обычно usecase.HistoryService).
type recordSaver interface {
	Record(ctx context.Context, rec domain.DeliveryRecord) error
}

// Consumer — читает журнал доставок из Kafka и сохраняет записи в историю.
// Потребители пишут журнал в топик, а этот процесс переносит его в Postgres.
type Consumer struct {
	reader         reader
	saver          recordSaver
	log            ports.Logger
	processTimeout time.Duration
	backoff        consumer.Backoff
	closeOnce      sync.Once
}

// NewConsumer — конструктор. ReaderConfig() настроен на ручной коммит оффсетов.
func NewConsumer(cfg *ConsumerConfig, saver recordSaver, log ports.Logger) *Consumer {
	rd := kafka.NewReader(cfg.ReaderConfig())

	// Параметры по умолчанию (если не заданы в конфиге)
	pt := cfg.ProcessTimeout
	if pt <= 0 {
		pt = 5 * time.Second
	}

	rInit := cfg.RetryInitial
	if rInit <= 0 {
		rInit = 1 * time.Second
	}

	rMax := cfg.RetryMax
	if rMax <= 0 {
		rMax = 30 * time.Second
	}

	return &Consumer{
		reader:         rd,
		saver:          saver,
		log:            log,
		processTimeout: pt,
		backoff:        &consumer.ExponentialBackoff{Initial: rInit, Max: rMax, Multiplier: 2, Jitter: true},
	}
}

// Run — основной цикл:
// 1) читаем запись без авто-коммита;
// 2) сохранили → CommitMessages;
// 3) невалидная запись → лог и CommitMessages (пропускаем навсегда);
// 4) временная ошибка хранилища → повтор той же записи с backoff, оффсет не двигается.
func (c *Consumer) Run(ctx context.Context) error {
	rc := c.reader.Config()
	c.log.Infof(ctx, "journal sink started topic=%s group_id=%s brokers=%v", rc.Topic, rc.GroupID, rc.Brokers)

	failures := 0
	for {
		msg, fetchErr := c.reader.FetchMessage(ctx)
		if fetchErr != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// временная ошибка брокера/сети
			failures++
			delay := c.backoff.Next(failures)
			c.log.Warnf(ctx, "fetch failed: %v (will retry in %s)", fetchErr, delay)
			if !sleepWithBackoff(ctx, delay) {
				return ctx.Err()
			}
			continue
		}

		failures = 0
		metrics.JournalSinkMessages.WithLabelValues(rc.Topic, "consumed").Inc()

		if !c.project(ctx, rc.Topic, &msg) {
			// остановка посреди повторов: оффсет не коммитим, запись придёт снова
			return ctx.Err()
		}
		c.commitSafely(ctx, &msg)
	}
}

// Close - закрывает reader. Вызывается при остановке приложения.
func (c *Consumer) Close() (retErr error) {
	c.closeOnce.Do(func() {
		retErr = c.reader.Close()
	})
	return retErr
}
