//go:build integration

package redisstream_test

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gunvolt24/leasepull/internal/broker/redisstream"
	"github.com/Gunvolt24/leasepull/internal/domain"
	"github.com/Gunvolt24/leasepull/internal/testutil"
)

func TestRedisStream_FetchAckAndRedelivery(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	env, stop, err := testutil.StartRedisTC(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = stop(context.Background()) })

	const stream = "orders"
	cfg := redisstream.Config{Stream: stream, Group: "workers", Consumer: "w1", Invisibility: 500 * time.Millisecond}
	c, err := redisstream.New(ctx, env.Client, cfg)
	require.NoError(t, err)

	// Повторное создание группы не ошибка.
	_, err = redisstream.New(ctx, env.Client, cfg)
	require.NoError(t, err)

	for _, body := range []string{"one", "two"} {
		require.NoError(t, env.Client.XAdd(ctx, &redis.XAddArgs{
			Stream: stream,
			Values: map[string]any{"body": body, "tag": "t", "keys": "k1,k2"},
		}).Err())
	}

	batch, err := c.FetchBatch(ctx, 10, time.Second)
	require.NoError(t, err)
	require.Len(t, batch, 2)
	assert.Equal(t, []byte("one"), batch[0].Body)
	assert.Equal(t, 1, batch[0].DeliveryAttempt)
	assert.Equal(t, []string{"k1", "k2"}, batch[0].Keys)

	require.NoError(t, c.Acknowledge(ctx, batch[0]))
	require.ErrorIs(t, c.Acknowledge(ctx, batch[0]), domain.ErrAck)

	// Вторая запись не подтверждена: после истечения аренды её нельзя подтвердить, она придёт снова.
	time.Sleep(700 * time.Millisecond)
	require.ErrorIs(t, c.Acknowledge(ctx, batch[1]), domain.ErrAck)

	other, err := redisstream.New(ctx, env.Client, redisstream.Config{Stream: stream, Group: "workers", Consumer: "w2", Invisibility: 500 * time.Millisecond})
	require.NoError(t, err)

	redelivered, err := other.FetchBatch(ctx, 10, 100*time.Millisecond)
	require.NoError(t, err)
	require.Len(t, redelivered, 1)
	assert.Equal(t, batch[1].ID, redelivered[0].ID)
	assert.Equal(t, 2, redelivered[0].DeliveryAttempt)
	require.NoError(t, other.Acknowledge(ctx, redelivered[0]))

	empty, err := other.FetchBatch(ctx, 10, 100*time.Millisecond)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
