package consumer

import (
	"math"
	"math/rand"
	"time"
)

const (
	backoffFixed       = "fixed"
	backoffExponential = "exponential"
)

// Backoff — задержка перед повтором после attempt подряд идущих ошибок (attempt >= 1).
type Backoff interface {
	Next(attempt int) time.Duration
}

// FixedBackoff — одна и та же задержка на каждую ошибку.
type FixedBackoff struct {
	Delay time.Duration
}

func (b FixedBackoff) Next(int) time.Duration { return b.Delay }

// ExponentialBackoff — Initial * Multiplier^(attempt-1), но не больше Max.
// С Jitter применяется equal-jitter: половина задержки фиксирована, вторая половина случайна.
type ExponentialBackoff struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
	Jitter     bool

	rnd *rand.Rand
}

func (b *ExponentialBackoff) Next(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	mult := b.Multiplier
	if mult < 1 {
		mult = 2
	}

	d := float64(b.Initial) * math.Pow(mult, float64(attempt-1))
	if b.Max > 0 && d > float64(b.Max) {
		d = float64(b.Max)
	}
	delay := time.Duration(d)

	if b.Jitter {
		return b.withJitterEqual(delay)
	}
	return delay
}

// withJitterEqual — умеренная случайность: баланс между стабильностью и рассинхронизацией.
func (b *ExponentialBackoff) withJitterEqual(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	if b.rnd == nil {
		b.rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	half := d / 2
	jitter := time.Duration(b.rnd.Int63n(int64(d-half) + 1))
	return half + jitter
}
