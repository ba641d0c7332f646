package consumer

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestExponentialBackoff_GrowsUpToMax(t *testing.T) {
	b := &ExponentialBackoff{Initial: 100 * time.Millisecond, Max: time.Second, Multiplier: 2}

	got := []time.Duration{b.Next(1), b.Next(2), b.Next(3), b.Next(4), b.Next(5), b.Next(50)}
	want := []time.Duration{
		100 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond,
		800 * time.Millisecond, time.Second, time.Second,
	}
	assert.Equal(t, want, got)
	assert.Equal(t, 100*time.Millisecond, b.Next(0), "attempt is clamped to 1")
}

func TestExponentialBackoff_EqualJitterBounds(t *testing.T) {
	b := &ExponentialBackoff{
		Initial: time.Second, Max: 8 * time.Second, Multiplier: 2, Jitter: true,
		rnd: rand.New(rand.NewSource(42)),
	}
	for attempt := 1; attempt <= 6; attempt++ {
		base := (&ExponentialBackoff{Initial: time.Second, Max: 8 * time.Second, Multiplier: 2}).Next(attempt)
		for i := 0; i < 50; i++ {
			d := b.Next(attempt)
			assert.GreaterOrEqual(t, d, base/2)
			assert.LessOrEqual(t, d, base)
		}
	}
}

func TestFixedBackoff(t *testing.T) {
	b := FixedBackoff{Delay: 3 * time.Second}
	assert.Equal(t, 3*time.Second, b.Next(1))
	assert.Equal(t, 3*time.Second, b.Next(10))
}

func TestBackoffConfig_Validate(t *testing.T) {
	assert.NoError(t, BackoffConfig{Kind: "fixed", Initial: 0}.validate())
	assert.NoError(t, BackoffConfig{Kind: "Exponential", Initial: time.Second, Max: time.Second, Multiplier: 1}.validate())
	assert.Error(t, BackoffConfig{Kind: "exponential", Initial: 2 * time.Second, Max: time.Second, Multiplier: 2}.validate())
	assert.Error(t, BackoffConfig{Kind: "exponential", Initial: time.Second, Max: time.Second, Multiplier: 0.5}.validate())
	assert.Error(t, BackoffConfig{Kind: "linear"}.validate())
}

func TestDefaultConfig_IsValid(t *testing.T) {
	cfg := DefaultConfig()
	assert.NoError(t, cfg.validate())
	assert.Equal(t, 10, cfg.MaxMessageNums)
	assert.Equal(t, 20*time.Second, cfg.WaitDuration)
	assert.IsType(t, &ExponentialBackoff{}, cfg.Backoff.build())
}
