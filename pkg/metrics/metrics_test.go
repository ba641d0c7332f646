package metrics_test

import (
	"strings"
	"testing"

	"github.com/Gunvolt24/leasepull/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMustRegister_IsIdempotent(t *testing.T) {
	// Должно выполняться без паники даже при повторном вызове.
	metrics.MustRegister()
	metrics.MustRegister()
}

func TestConsumerCounters_Inc(t *testing.T) {
	metrics.MustRegister()

	const name = "metrics-test"

	beforeFetched := testutil.ToFloat64(metrics.MessagesFetched.WithLabelValues(name))
	beforeSucceeded := testutil.ToFloat64(metrics.MessagesSucceeded.WithLabelValues(name))
	beforeAbandoned := testutil.ToFloat64(metrics.AbandonedExpired.WithLabelValues(name))

	metrics.MessagesFetched.WithLabelValues(name).Add(3)
	metrics.MessagesSucceeded.WithLabelValues(name).Inc()
	metrics.AbandonedExpired.WithLabelValues(name).Inc()

	if got := testutil.ToFloat64(metrics.MessagesFetched.WithLabelValues(name)); got != beforeFetched+3 {
		t.Fatalf("MessagesFetched: got=%v want=%v", got, beforeFetched+3)
	}
	if got := testutil.ToFloat64(metrics.MessagesSucceeded.WithLabelValues(name)); got != beforeSucceeded+1 {
		t.Fatalf("MessagesSucceeded: got=%v want=%v", got, beforeSucceeded+1)
	}
	if got := testutil.ToFloat64(metrics.AbandonedExpired.WithLabelValues(name)); got != beforeAbandoned+1 {
		t.Fatalf("AbandonedExpired: got=%v want=%v", got, beforeAbandoned+1)
	}
}

func TestCacheOps_CountersByLabel(t *testing.T) {
	metrics.MustRegister()

	hitBefore := testutil.ToFloat64(metrics.CacheOps.WithLabelValues("hit"))
	missBefore := testutil.ToFloat64(metrics.CacheOps.WithLabelValues("miss"))

	metrics.CacheOps.WithLabelValues("hit").Inc()
	metrics.CacheOps.WithLabelValues("hit").Inc()

	if got := testutil.ToFloat64(metrics.CacheOps.WithLabelValues("hit")); got != hitBefore+2 {
		t.Fatalf("CacheOps(hit): got=%v want=%v", got, hitBefore+2)
	}
	if got := testutil.ToFloat64(metrics.CacheOps.WithLabelValues("miss")); got != missBefore {
		t.Fatalf("CacheOps(miss): got=%v want=%v", got, missBefore)
	}
}

func TestInFlightLeases_GaugeSet(t *testing.T) {
	metrics.MustRegister()

	g := metrics.InFlightLeases.WithLabelValues("gauge-test")
	g.Set(5)
	if got := testutil.ToFloat64(g); got != 5 {
		t.Fatalf("InFlightLeases: got=%v want=5", got)
	}
	g.Set(0)
	if got := testutil.ToFloat64(g); got != 0 {
		t.Fatalf("InFlightLeases reset: got=%v want=0", got)
	}
}

func TestAckErrors_HelpCoversConnectivity(t *testing.T) {
	// Счётчик растёт и при отказе брокера, и при сбое связи во время ack.
	desc := metrics.AckErrors.WithLabelValues("help-test").Desc().String()
	if !strings.Contains(desc, "rejected by the broker") || !strings.Contains(desc, "connectivity failure") {
		t.Fatalf("AckErrors help does not describe both failure kinds: %s", desc)
	}
}
