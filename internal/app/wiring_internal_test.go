package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gunvolt24/leasepull/config"
	"github.com/Gunvolt24/leasepull/internal/broker/memory"
)

type nopLogger struct{}

func (nopLogger) Infof(context.Context, string, ...any)  {}
func (nopLogger) Warnf(context.Context, string, ...any)  {}
func (nopLogger) Errorf(context.Context, string, ...any) {}

// offlineHook — отвечает на команды без соединения с Redis и запоминает их.
type offlineHook struct {
	mu   sync.Mutex
	cmds [][]any
}

func (h *offlineHook) DialHook(next redis.DialHook) redis.DialHook { return next }

func (h *offlineHook) ProcessHook(redis.ProcessHook) redis.ProcessHook {
	return func(_ context.Context, cmd redis.Cmder) error {
		h.mu.Lock()
		h.cmds = append(h.cmds, cmd.Args())
		h.mu.Unlock()
		return nil
	}
}

func (h *offlineHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}

func TestLoopName(t *testing.T) {
	assert.Equal(t, "worker", loopName("worker", 0, 1))
	assert.Equal(t, "worker-0", loopName("worker", 0, 3))
	assert.Equal(t, "worker-2", loopName("worker", 2, 3))
}

func TestConsumerConfig_Maps(t *testing.T) {
	in := config.Consumer{
		MaxMessageNums:       5,
		WaitDuration:         2 * time.Second,
		InvisibilityDuration: time.Minute,
		IdlePollDelay:        100 * time.Millisecond,
		LeaseSafetyMargin:    time.Second,
		AckTimeout:           3 * time.Second,
		JournalBuffer:        64,
		Backoff:              config.Backoff{Kind: "fixed", Initial: 2 * time.Second},
	}

	got := consumerConfig(&in, "c-1")

	assert.Equal(t, "c-1", got.Name)
	assert.Equal(t, 5, got.MaxMessageNums)
	assert.Equal(t, time.Minute, got.InvisibilityDuration)
	assert.Equal(t, time.Second, got.LeaseSafetyMargin)
	assert.Equal(t, 64, got.JournalBuffer)
	assert.Equal(t, "fixed", got.Backoff.Kind)
	assert.Equal(t, 2*time.Second, got.Backoff.Initial)
}

func TestSeedMemory_FailMarkerEveryFifth(t *testing.T) {
	b := memory.New(time.Minute)
	seedMemory(b, 10, "fail")
	assert.Equal(t, 10, b.Pending())
}

func TestRedisBrokers_ConsumerNamePerLoop(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	defer rdb.Close()
	hook := &offlineHook{}
	rdb.AddHook(hook)

	rc := config.Redis{Stream: "orders", Group: "workers"}

	clients, err := redisBrokers(context.Background(), rdb, rc, "host-a", 3, time.Minute)
	require.NoError(t, err)
	require.Len(t, clients, 3)

	names := make([]string, 0, len(clients))
	for _, c := range clients {
		names = append(names, c.Consumer())
	}
	assert.Equal(t, []string{"host-a-0", "host-a-1", "host-a-2"}, names)

	// Группа создаётся (или уже есть) для каждого клиента; MKSTREAM идемпотентен.
	require.Len(t, hook.cmds, 3)
	assert.Equal(t, "xgroup", hook.cmds[0][0])
	assert.Equal(t, "orders", hook.cmds[0][2])
	assert.Equal(t, "workers", hook.cmds[0][3])

	single, err := redisBrokers(context.Background(), rdb, rc, "host-a", 1, time.Minute)
	require.NoError(t, err)
	require.Len(t, single, 1)
	assert.Equal(t, "host-a", single[0].Consumer())
}

func TestRedisConsumerName(t *testing.T) {
	assert.Equal(t, "configured", redisConsumerName("configured", "leasepull"))
	assert.NotEmpty(t, redisConsumerName("", "leasepull"))
}

func TestNewBrokers_MemorySharedAcrossLoops(t *testing.T) {
	cfg, err := config.LoadWithPrefix("LEASEPULL_WIRING_TEST")
	require.NoError(t, err)
	cfg.Broker.Driver = "memory"
	cfg.Broker.Memory.Seed = 0

	brokers, closeFn, err := newBrokers(context.Background(), &cfg, 3, nopLogger{})
	require.NoError(t, err)
	defer closeFn()

	require.Len(t, brokers, 3)
	assert.Same(t, brokers[0], brokers[2])
}

func TestDrainTimeout_CoversLease(t *testing.T) {
	cfg, err := config.LoadWithPrefix("LEASEPULL_WIRING_TEST_DRAIN")
	require.NoError(t, err)

	// Значения по умолчанию: graceful 5s, аренда 30s, ack 5s.
	assert.Equal(t, 40*time.Second, drainTimeout(&cfg))

	cfg.HTTP.GracefulTimeout = time.Minute
	assert.Equal(t, time.Minute, drainTimeout(&cfg))
}
