package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestAllowDrainsAndRefills(t *testing.T) {
	now := time.Unix(1000, 0)
	l := New()
	l.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		if !l.Allow("k", 3, 1) {
			t.Fatalf("call %d should be allowed", i)
		}
	}
	if l.Allow("k", 3, 1) {
		t.Fatalf("bucket should be empty")
	}
	if !l.Allow("other", 3, 1) {
		t.Fatalf("keys must not share buckets")
	}
	now = now.Add(time.Second)
	if !l.Allow("k", 3, 1) {
		t.Fatalf("expected refill after one second")
	}
}

func TestWaitHonoursContext(t *testing.T) {
	l := New()
	if err := l.Wait(context.Background(), "k", 1, 1000); err != nil {
		t.Fatalf("first wait: %v", err)
	}
	if err := l.Wait(context.Background(), "k", 1, 1000); err != nil {
		t.Fatalf("second wait should succeed after refill: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := l.Wait(ctx, "slow", 1, 0.001); err != nil {
		t.Fatalf("first token is free: %v", err)
	}
	if err := l.Wait(ctx, "slow", 1, 0.001); err == nil {
		t.Fatalf("expected context error")
	}
}
