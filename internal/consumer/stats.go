package consumer

import (
	"sync/atomic"

	"github.com/Gunvolt24/leasepull/internal/domain"
	"github.com/Gunvolt24/leasepull/pkg/metrics"
)

// Stats — счётчики одного цикла. Дублируются в Prometheus с меткой consumer.
type Stats struct {
	name string

	cycles             atomic.Uint64
	fetched            atomic.Uint64
	succeeded          atomic.Uint64
	failedNoAck        atomic.Uint64
	ackErrors          atomic.Uint64
	connectivityErrors atomic.Uint64
	abandonedExpired   atomic.Uint64
}

func newStats(name string) *Stats { return &Stats{name: name} }

func (s *Stats) cycle() { s.cycles.Add(1) }

func (s *Stats) addFetched(n int) {
	s.fetched.Add(uint64(n))
	metrics.MessagesFetched.WithLabelValues(s.name).Add(float64(n))
}

func (s *Stats) succeed() {
	s.succeeded.Add(1)
	metrics.MessagesSucceeded.WithLabelValues(s.name).Inc()
}

func (s *Stats) failNoAck() {
	s.failedNoAck.Add(1)
	metrics.MessagesFailedNoAck.WithLabelValues(s.name).Inc()
}

func (s *Stats) ackError() {
	s.ackErrors.Add(1)
	metrics.AckErrors.WithLabelValues(s.name).Inc()
}

func (s *Stats) connectivityError() {
	s.connectivityErrors.Add(1)
	metrics.ConnectivityErrors.WithLabelValues(s.name).Inc()
}

func (s *Stats) abandon() {
	s.abandonedExpired.Add(1)
	metrics.AbandonedExpired.WithLabelValues(s.name).Inc()
}

// Snapshot — согласованный по каждому полю (но не атомарный в целом) снимок счётчиков.
func (s *Stats) Snapshot() domain.ConsumerStats {
	return domain.ConsumerStats{
		Consumer:           s.name,
		Cycles:             s.cycles.Load(),
		Fetched:            s.fetched.Load(),
		Succeeded:          s.succeeded.Load(),
		FailedNoAck:        s.failedNoAck.Load(),
		AckErrors:          s.ackErrors.Load(),
		ConnectivityErrors: s.connectivityErrors.Load(),
		AbandonedExpired:   s.abandonedExpired.Load(),
	}
}
