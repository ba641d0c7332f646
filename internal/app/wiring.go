package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awssqs "github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/redis/go-redis/v9"

	"github.com/Gunvolt24/leasepull/config"
	"github.com/Gunvolt24/leasepull/internal/broker/memory"
	"github.com/Gunvolt24/leasepull/internal/broker/redisstream"
	sqsbroker "github.com/Gunvolt24/leasepull/internal/broker/sqs"
	"github.com/Gunvolt24/leasepull/internal/consumer"
	"github.com/Gunvolt24/leasepull/internal/domain"
	"github.com/Gunvolt24/leasepull/internal/ports"
)

const (
	driverMemory = "memory"
	driverSQS    = "sqs"
	driverRedis  = "redis"
)

// consumerConfig — перенос настроек из окружения в конфиг цикла.
func consumerConfig(c *config.Consumer, name string) consumer.Config {
	return consumer.Config{
		Name:                 name,
		MaxMessageNums:       c.MaxMessageNums,
		WaitDuration:         c.WaitDuration,
		InvisibilityDuration: c.InvisibilityDuration,
		IdlePollDelay:        c.IdlePollDelay,
		LeaseSafetyMargin:    c.LeaseSafetyMargin,
		AckTimeout:           c.AckTimeout,
		JournalBuffer:        c.JournalBuffer,
		Backoff: consumer.BackoffConfig{
			Kind:       c.Backoff.Kind,
			Initial:    c.Backoff.Initial,
			Max:        c.Backoff.Max,
			Multiplier: c.Backoff.Multiplier,
			Jitter:     c.Backoff.Jitter,
		},
	}
}

// loopName — имя i-го цикла; единственный цикл получает имя без суффикса.
func loopName(base string, i, total int) string {
	if total <= 1 {
		return base
	}
	return fmt.Sprintf("%s-%d", base, i)
}

// newBrokers — клиенты брокера по драйверу, по одному на цикл. Драйверы без имени потребителя
// (memory, sqs) отдают всем циклам один клиент. Возвращаемая функция освобождает соединения.
func newBrokers(ctx context.Context, cfg *config.Config, loops int, log ports.Logger) ([]ports.BrokerClient, func(), error) {
	noop := func() {}
	invisibility := cfg.Consumer.InvisibilityDuration

	switch strings.ToLower(strings.TrimSpace(cfg.Broker.Driver)) {
	case "", driverMemory:
		b := memory.New(invisibility, memory.WithTopic(cfg.Broker.Memory.Topic))
		seedMemory(b, cfg.Broker.Memory.Seed, cfg.Handler.FailMarker)
		log.Infof(ctx, "memory broker ready topic=%s seeded=%d", cfg.Broker.Memory.Topic, cfg.Broker.Memory.Seed)
		return shared(b, loops), noop, nil

	case driverSQS:
		opts := []func(*awsconfig.LoadOptions) error{}
		if cfg.Broker.SQS.Region != "" {
			opts = append(opts, awsconfig.WithRegion(cfg.Broker.SQS.Region))
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			return nil, noop, fmt.Errorf("load aws config: %w", err)
		}
		api := awssqs.NewFromConfig(awsCfg, func(o *awssqs.Options) {
			if cfg.Broker.SQS.Endpoint != "" {
				o.BaseEndpoint = aws.String(cfg.Broker.SQS.Endpoint)
			}
		})
		c, err := sqsbroker.New(api, sqsbroker.Config{QueueURL: cfg.Broker.SQS.QueueURL, Invisibility: invisibility})
		if err != nil {
			return nil, noop, err
		}
		log.Infof(ctx, "sqs broker ready queue=%s region=%s", cfg.Broker.SQS.QueueURL, cfg.Broker.SQS.Region)
		return shared(c, loops), noop, nil

	case driverRedis:
		rc := cfg.Broker.Redis
		rdb := redis.NewClient(&redis.Options{Addr: rc.Addr, Password: rc.Password, DB: rc.DB})
		closeRedis := func() {
			if err := rdb.Close(); err != nil {
				log.Warnf(ctx, "redis close: %v", err)
			}
		}

		clients, err := redisBrokers(ctx, rdb, rc, redisConsumerName(rc.Consumer, cfg.Consumer.Name), loops, invisibility)
		if err != nil {
			closeRedis()
			return nil, noop, err
		}
		brokers := make([]ports.BrokerClient, 0, len(clients))
		for _, c := range clients {
			log.Infof(ctx, "redis stream broker ready addr=%s stream=%s group=%s consumer=%s", rc.Addr, rc.Stream, rc.Group, c.Consumer())
			brokers = append(brokers, c)
		}
		return brokers, closeRedis, nil
	}

	return nil, noop, errors.New("unknown broker driver: " + cfg.Broker.Driver)
}

// redisBrokers — по клиенту на цикл над общим пулом соединений. Имена потребителей в группе
// различаются: у каждого цикла свой PEL, и XAUTOCLAIM видит записи зависшего цикла.
func redisBrokers(ctx context.Context, rdb redis.Cmdable, rc config.Redis, base string, loops int, invisibility time.Duration) ([]*redisstream.Client, error) {
	loops = max(1, loops)
	out := make([]*redisstream.Client, 0, loops)
	for i := 0; i < loops; i++ {
		c, err := redisstream.New(ctx, rdb, redisstream.Config{
			Stream:       rc.Stream,
			Group:        rc.Group,
			Consumer:     loopName(base, i, loops),
			Invisibility: invisibility,
		})
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// redisConsumerName — базовое имя потребителя: из конфига, иначе hostname, иначе имя цикла.
func redisConsumerName(configured, fallback string) string {
	if configured != "" {
		return configured
	}
	if host, _ := os.Hostname(); host != "" {
		return host
	}
	return fallback
}

func shared(b ports.BrokerClient, loops int) []ports.BrokerClient {
	out := make([]ports.BrokerClient, max(1, loops))
	for i := range out {
		out[i] = b
	}
	return out
}

// seedMemory — демо-сообщения для драйвера memory; каждое пятое содержит маркер сбоя.
func seedMemory(b *memory.Broker, n int, failMarker string) {
	for i := 1; i <= n; i++ {
		body := fmt.Sprintf("demo message %d", i)
		if failMarker != "" && i%5 == 0 {
			body += " " + failMarker
		}
		b.Enqueue(domain.Message{
			Tag:  "demo",
			Keys: []string{fmt.Sprintf("demo-%d", i)},
			Body: []byte(body),
		})
	}
}

// statsSet — объединение снимков pull-циклов и push-диспетчера для /stats.
type statsSet []ports.StatsProvider

func (s statsSet) Snapshots() []domain.ConsumerStats {
	var out []domain.ConsumerStats
	for _, p := range s {
		out = append(out, p.Snapshots()...)
	}
	return out
}
