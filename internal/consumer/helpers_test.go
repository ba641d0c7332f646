package consumer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Gunvolt24/leasepull/internal/domain"
	"github.com/Gunvolt24/leasepull/internal/ports"
)

type noopLogger struct{}

func (noopLogger) Infof(context.Context, string, ...any)  {}
func (noopLogger) Warnf(context.Context, string, ...any)  {}
func (noopLogger) Errorf(context.Context, string, ...any) {}

// fakeClock — ручные часы, общие для брокера и трекера.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)}
}

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

// sleepRecorder — подменяет ожидание цикла: запоминает задержки и не спит.
type sleepRecorder struct {
	mu      sync.Mutex
	delays  []time.Duration
	onSleep func(n int)
}

func (r *sleepRecorder) sleep(ctx context.Context, d time.Duration) bool {
	r.mu.Lock()
	r.delays = append(r.delays, d)
	n := len(r.delays)
	r.mu.Unlock()

	if r.onSleep != nil {
		r.onSleep(n)
	}
	return ctx.Err() == nil
}

func (r *sleepRecorder) recorded() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.delays...)
}

func testConfig(name string) Config {
	return Config{
		Name:                 name,
		MaxMessageNums:       10,
		WaitDuration:         0,
		InvisibilityDuration: 10 * time.Second,
		IdlePollDelay:        500 * time.Millisecond,
		Backoff:              BackoffConfig{Kind: "fixed", Initial: 2 * time.Second},
	}
}

func newTestLoop(t *testing.T, broker ports.BrokerClient, handler ports.MessageHandler, cfg Config, clock *fakeClock, opts ...Option) (*Loop, *sleepRecorder) {
	t.Helper()

	if clock != nil {
		opts = append(opts, WithClock(clock.Now))
	}
	l, err := New(broker, handler, cfg, noopLogger{}, opts...)
	require.NoError(t, err)

	rec := &sleepRecorder{}
	l.sleep = rec.sleep
	return l, rec
}

func processorOf(t *testing.T, l *Loop) *Processor {
	t.Helper()
	p, ok := l.runner.(*Processor)
	require.True(t, ok)
	return p
}

func msg(id string) domain.Message {
	return domain.Message{ID: id, ReceiptHandle: "rh-" + id, Topic: "orders", DeliveryAttempt: 1}
}
