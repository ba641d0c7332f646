// Package redisstream — BrokerClient поверх Redis Streams (consumer group).
//
// Аренда = время нахождения записи в PEL: запись, простаивающая дольше Invisibility,
// забирается XAUTOCLAIM при следующем FetchBatch любого потребителя группы.
package redisstream

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Gunvolt24/leasepull/internal/domain"
	"github.com/Gunvolt24/leasepull/internal/ports"
)

var _ ports.BrokerClient = (*Client)(nil)

// Поля записи потока.
const (
	FieldBody = "body"
	FieldTag  = "tag"
	FieldKeys = "keys"
)

type Config struct {
	Stream       string
	Group        string
	Consumer     string
	Invisibility time.Duration
}

type Client struct {
	rdb          redis.Cmdable
	stream       string
	group        string
	consumer     string
	invisibility time.Duration
}

// New — создаёт группу (MKSTREAM) при необходимости; существующая группа не ошибка.
func New(ctx context.Context, rdb redis.Cmdable, cfg Config) (*Client, error) {
	if rdb == nil {
		return nil, errors.New("redisstream: client is required")
	}
	if cfg.Stream == "" || cfg.Group == "" || cfg.Consumer == "" {
		return nil, errors.New("redisstream: stream, group and consumer are required")
	}
	if cfg.Invisibility <= 0 {
		return nil, errors.New("redisstream: invisibility must be positive")
	}

	err := rdb.XGroupCreateMkStream(ctx, cfg.Stream, cfg.Group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return nil, domain.Connectivity("redis create group "+cfg.Group, err)
	}

	return &Client{
		rdb:          rdb,
		stream:       cfg.Stream,
		group:        cfg.Group,
		consumer:     cfg.Consumer,
		invisibility: cfg.Invisibility,
	}, nil
}

// Consumer — имя потребителя в группе.
func (c *Client) Consumer() string { return c.consumer }

// FetchBatch — сначала просроченные записи группы (повторная доставка), затем новые.
// Блокирующее чтение выполняется, только если просроченных не нашлось.
func (c *Client) FetchBatch(ctx context.Context, maxMessageNums int, waitDuration time.Duration) (domain.Batch, error) {
	if maxMessageNums < 1 {
		maxMessageNums = 1
	}

	batch, err := c.reclaim(ctx, maxMessageNums)
	if err != nil {
		return nil, err
	}
	if len(batch) > 0 {
		return batch, nil
	}

	// Block=0 в Redis означает "ждать бесконечно"; отрицательное значение — без BLOCK.
	block := waitDuration
	if block <= 0 {
		block = -1
	} else if block < time.Millisecond {
		block = time.Millisecond
	}

	streams, err := c.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.group,
		Consumer: c.consumer,
		Streams:  []string{c.stream, ">"},
		Count:    int64(maxMessageNums),
		Block:    block,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Batch{}, nil
		}
		return nil, domain.Connectivity("redis xreadgroup", err)
	}

	for _, s := range streams {
		for _, m := range s.Messages {
			batch = append(batch, c.toDomain(m, 1))
		}
	}
	return batch, nil
}

// reclaim — XAUTOCLAIM записей, чья аренда истекла; номер попытки берётся из XPENDING.
func (c *Client) reclaim(ctx context.Context, limit int) (domain.Batch, error) {
	msgs, _, err := c.rdb.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   c.stream,
		Group:    c.group,
		Consumer: c.consumer,
		MinIdle:  c.invisibility,
		Start:    "0-0",
		Count:    int64(limit),
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, domain.Connectivity("redis xautoclaim", err)
	}
	if len(msgs) == 0 {
		return nil, nil
	}

	attempts := c.deliveryCounts(ctx, msgs)
	batch := make(domain.Batch, 0, len(msgs))
	for _, m := range msgs {
		batch = append(batch, c.toDomain(m, attempts[m.ID]))
	}
	return batch, nil
}

// deliveryCounts — счётчики доставок из PEL; сбой не критичен (попытка останется 0).
func (c *Client) deliveryCounts(ctx context.Context, msgs []redis.XMessage) map[string]int {
	out := make(map[string]int, len(msgs))
	pending, err := c.rdb.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream:   c.stream,
		Group:    c.group,
		Start:    msgs[0].ID,
		End:      msgs[len(msgs)-1].ID,
		Count:    int64(len(msgs)),
		Consumer: c.consumer,
	}).Result()
	if err != nil {
		return out
	}
	for _, p := range pending {
		out[p.ID] = int(p.RetryCount)
	}
	return out
}

// Acknowledge — XACK, только если запись всё ещё за этим потребителем и её аренда не истекла.
func (c *Client) Acknowledge(ctx context.Context, msg domain.Message) error {
	id := msg.Handle()

	pending, err := c.rdb.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream:   c.stream,
		Group:    c.group,
		Start:    id,
		End:      id,
		Count:    1,
		Consumer: c.consumer,
	}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return domain.Connectivity("redis xpending", err)
	}
	if len(pending) == 0 {
		return domain.AckRejected(msg.ID, errors.New("entry is not pending for this consumer"))
	}
	if pending[0].Idle >= c.invisibility {
		return domain.AckRejected(msg.ID, fmt.Errorf("lease expired (idle %s)", pending[0].Idle))
	}

	n, err := c.rdb.XAck(ctx, c.stream, c.group, id).Result()
	if err != nil {
		return domain.Connectivity("redis xack", err)
	}
	if n == 0 {
		return domain.AckRejected(msg.ID, errors.New("entry already acknowledged"))
	}
	return nil
}

func (c *Client) toDomain(m redis.XMessage, attempt int) domain.Message {
	msg := domain.Message{
		ID:              m.ID,
		ReceiptHandle:   m.ID,
		Topic:           c.stream,
		DeliveryAttempt: attempt,
		BornAt:          bornAt(m.ID),
	}

	for k, v := range m.Values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		switch k {
		case FieldBody:
			msg.Body = []byte(s)
		case FieldTag:
			msg.Tag = s
		case FieldKeys:
			msg.Keys = splitKeys(s)
		default:
			if msg.Properties == nil {
				msg.Properties = make(map[string]string)
			}
			msg.Properties[k] = s
		}
	}
	return msg
}

// bornAt — время из ID записи ("<ms>-<seq>").
func bornAt(id string) time.Time {
	ms, _, ok := strings.Cut(id, "-")
	if !ok {
		return time.Time{}
	}
	v, err := strconv.ParseInt(ms, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.UnixMilli(v).UTC()
}

func splitKeys(s string) []string {
	var keys []string
	for _, k := range strings.Split(s, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}
