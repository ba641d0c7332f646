package memory_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gunvolt24/leasepull/internal/broker/memory"
	"github.com/Gunvolt24/leasepull/internal/domain"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock { return &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func TestFetchBatch_RespectsLimitAndOrder(t *testing.T) {
	b := memory.New(time.Minute)
	for _, id := range []string{"m1", "m2", "m3"} {
		b.Enqueue(domain.Message{ID: id})
	}

	batch, err := b.FetchBatch(context.Background(), 2, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"m1", "m2"}, batch.IDs())
	for _, m := range batch {
		assert.NotEmpty(t, m.ReceiptHandle)
		assert.Equal(t, 1, m.DeliveryAttempt)
		assert.Equal(t, "memory", m.Topic)
	}

	batch, err = b.FetchBatch(context.Background(), 10, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"m3"}, batch.IDs())
	assert.Equal(t, 3, b.Pending())
}

func TestFetchBatch_EmptyAfterWait(t *testing.T) {
	b := memory.New(time.Minute)

	start := time.Now()
	batch, err := b.FetchBatch(context.Background(), 10, 30*time.Millisecond)
	require.NoError(t, err)
	assert.Empty(t, batch)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestFetchBatch_LongPollWakesOnEnqueue(t *testing.T) {
	b := memory.New(time.Minute)

	go func() {
		time.Sleep(20 * time.Millisecond)
		b.Enqueue(domain.Message{ID: "late"})
	}()

	batch, err := b.FetchBatch(context.Background(), 10, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, []string{"late"}, batch.IDs())
}

func TestFetchBatch_CancelledContext(t *testing.T) {
	b := memory.New(time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := b.FetchBatch(ctx, 10, 5*time.Second)
	require.ErrorIs(t, err, context.Canceled)
}

func TestAcknowledge_RemovesMessage(t *testing.T) {
	b := memory.New(time.Minute)
	b.Enqueue(domain.Message{ID: "m1"})

	batch, err := b.FetchBatch(context.Background(), 1, 0)
	require.NoError(t, err)
	require.Len(t, batch, 1)

	require.NoError(t, b.Acknowledge(context.Background(), batch[0]))
	assert.Equal(t, 0, b.Pending())
	assert.Equal(t, []string{"m1"}, b.Acked())

	// Повторное подтверждение той же доставки — дескриптор уже неизвестен.
	err = b.Acknowledge(context.Background(), batch[0])
	require.True(t, errors.Is(err, domain.ErrAck))
}

func TestExpiredLease_RedeliversAndRejectsAck(t *testing.T) {
	clock := newFakeClock()
	b := memory.New(10*time.Second, memory.WithClock(clock.Now))
	b.Enqueue(domain.Message{ID: "m1"})

	first, err := b.FetchBatch(context.Background(), 1, 0)
	require.NoError(t, err)
	require.Len(t, first, 1)

	// Пока аренда жива, сообщение скрыто.
	empty, err := b.FetchBatch(context.Background(), 1, 0)
	require.NoError(t, err)
	assert.Empty(t, empty)

	clock.Advance(10 * time.Second)

	err = b.Acknowledge(context.Background(), first[0])
	require.ErrorIs(t, err, domain.ErrAck)

	second, err := b.FetchBatch(context.Background(), 1, 0)
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, "m1", second[0].ID)
	assert.Equal(t, 2, second[0].DeliveryAttempt)
	assert.NotEqual(t, first[0].ReceiptHandle, second[0].ReceiptHandle)
	assert.Equal(t, 2, b.DeliveryAttempts("m1"))

	require.NoError(t, b.Acknowledge(context.Background(), second[0]))
	assert.Equal(t, 0, b.Pending())
}

func TestFetchBatch_InvalidLimit(t *testing.T) {
	b := memory.New(time.Minute)
	_, err := b.FetchBatch(context.Background(), 0, 0)
	require.Error(t, err)
}
