package memory

import (
	"context"
	"testing"
	"time"

	"github.com/Gunvolt24/leasepull/internal/domain"
)

func rec(id string, st domain.DeliveryStatus) domain.DeliveryRecord {
	return domain.DeliveryRecord{MessageID: id, Status: st, Consumer: "c"}
}

func TestSetGet_HitMiss(t *testing.T) {
	c := NewLRUCacheTTL(2, 5*time.Minute)
	ctx := context.Background()

	// miss
	if _, ok := c.Get(ctx, "id-1"); ok {
		t.Fatalf("expected miss before Set")
	}

	// hit после Set
	_ = c.Set(ctx, "id-1", []domain.DeliveryRecord{rec("id-1", domain.StatusAcked)})
	got, ok := c.Get(ctx, "id-1")
	if !ok || len(got) != 1 || got[0].Status != domain.StatusAcked {
		t.Fatalf("expected hit for id-1, got %+v", got)
	}
}

func TestTTL_Expiry(t *testing.T) {
	c := NewLRUCacheTTL(2, time.Minute)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	_ = c.Set(ctx, "ttl", []domain.DeliveryRecord{rec("ttl", domain.StatusAckLost)})
	if _, ok := c.Get(ctx, "ttl"); !ok {
		t.Fatalf("expected hit right after Set")
	}

	// чтение продлевает срок
	now = now.Add(50 * time.Second)
	if _, ok := c.Get(ctx, "ttl"); !ok {
		t.Fatalf("expected hit before TTL")
	}
	now = now.Add(50 * time.Second)
	if _, ok := c.Get(ctx, "ttl"); !ok {
		t.Fatalf("expected sliding TTL to keep entry")
	}

	now = now.Add(61 * time.Second)
	if _, ok := c.Get(ctx, "ttl"); ok {
		t.Fatalf("expected miss after TTL expires")
	}
}

func TestLRUEviction(t *testing.T) {
	c := NewLRUCacheTTL(2, 0) // 0 = без TTL
	ctx := context.Background()

	_ = c.Set(ctx, "A", nil)
	_ = c.Set(ctx, "B", nil)
	// A сделать «свежим»
	if _, ok := c.Get(ctx, "A"); !ok {
		t.Fatalf("expected hit for A")
	}
	// Добавляем C — вытеснит B (самый старый)
	_ = c.Set(ctx, "C", nil)

	if _, ok := c.Get(ctx, "B"); ok {
		t.Fatalf("expected B to be evicted")
	}
	if _, ok := c.Get(ctx, "A"); !ok {
		t.Fatalf("expected A to survive")
	}
	if c.Len() != 2 {
		t.Fatalf("expected len=2, got %d", c.Len())
	}
}

func TestGet_ReturnsCopy(t *testing.T) {
	c := NewLRUCacheTTL(2, 0)
	ctx := context.Background()

	src := []domain.DeliveryRecord{rec("m", domain.StatusHandlerFailed)}
	_ = c.Set(ctx, "m", src)
	src[0].Status = domain.StatusAcked

	got, _ := c.Get(ctx, "m")
	got[0].Detail = "mutated"

	again, _ := c.Get(ctx, "m")
	if again[0].Status != domain.StatusHandlerFailed || again[0].Detail != "" {
		t.Fatalf("cache must keep its own copy, got %+v", again[0])
	}
}

func TestInvalidate(t *testing.T) {
	c := NewLRUCacheTTL(2, 0)
	ctx := context.Background()

	_ = c.Set(ctx, "m", []domain.DeliveryRecord{rec("m", domain.StatusAcked)})
	c.Invalidate(ctx, "m")
	c.Invalidate(ctx, "unknown")

	if _, ok := c.Get(ctx, "m"); ok {
		t.Fatalf("expected miss after Invalidate")
	}
}

func TestWarmUp_GroupsByMessage(t *testing.T) {
	c := NewLRUCacheTTL(2, 0)
	ctx := context.Background()

	records := []domain.DeliveryRecord{
		rec("a", domain.StatusAcked),
		rec("b", domain.StatusHandlerFailed),
		rec("a", domain.StatusHandlerFailed),
		rec("c", domain.StatusAcked), // не помещается
		rec("", domain.StatusAcked),
	}
	if err := c.WarmUp(ctx, records); err != nil {
		t.Fatalf("warmup: %v", err)
	}

	a, ok := c.Get(ctx, "a")
	if !ok || len(a) != 2 || a[0].Status != domain.StatusAcked || a[1].Status != domain.StatusHandlerFailed {
		t.Fatalf("unexpected history for a: %+v", a)
	}
	if _, ok := c.Get(ctx, "b"); !ok {
		t.Fatalf("expected b to be cached")
	}
	if _, ok := c.Get(ctx, "c"); ok {
		t.Fatalf("expected c to be dropped by capacity")
	}
}

func TestWarmUp_CancelledContext(t *testing.T) {
	c := NewLRUCacheTTL(10, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := c.WarmUp(ctx, []domain.DeliveryRecord{rec("a", domain.StatusAcked)}); err == nil {
		t.Fatalf("expected context error")
	}
}
