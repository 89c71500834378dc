package kafka

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestBackoffWithJitterBounds(t *testing.T) {
	min, max := 100*time.Millisecond, time.Second
	for attempt := 1; attempt <= 40; attempt++ {
		d := backoffWithJitter(min, max, attempt)
		if d <= 0 || d > max {
			t.Fatalf("attempt %d: backoff %v out of (0, %v]", attempt, d, max)
		}
	}
	if d := backoffWithJitter(min, max, 1); d < min/2 {
		t.Fatalf("first backoff %v below half of min", d)
	}
}

type flakyHandler struct {
	failures int
	calls    int
}

func (h *flakyHandler) Topic() string { return "t" }

func (h *flakyHandler) Handle(context.Context, []byte) error {
	h.calls++
	if h.calls <= h.failures {
		return errors.New("transient")
	}
	return nil
}

func TestHandleWithRetryRecovers(t *testing.T) {
	c := &Consumer{cfg: &ConsumerConfig{RetryMax: 3, BackoffMin: time.Millisecond, BackoffMax: 2 * time.Millisecond}}
	h := &flakyHandler{failures: 2}
	if err := c.handleWithRetry(context.Background(), h, nil); err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if h.calls != 3 {
		t.Fatalf("expected 3 calls, got %d", h.calls)
	}
}

func TestHandleWithRetryGivesUp(t *testing.T) {
	c := &Consumer{cfg: &ConsumerConfig{RetryMax: 1, BackoffMin: time.Millisecond, BackoffMax: time.Millisecond}}
	h := &flakyHandler{failures: 10}
	if err := c.handleWithRetry(context.Background(), h, nil); err == nil {
		t.Fatalf("expected error")
	}
	if h.calls != 2 {
		t.Fatalf("expected 2 calls, got %d", h.calls)
	}
}

type panicHandler struct{}

func (panicHandler) Topic() string                        { return "p" }
func (panicHandler) Handle(context.Context, []byte) error { panic("boom") }

func TestSafeHandleRecoversPanic(t *testing.T) {
	if err := safeHandle(context.Background(), panicHandler{}, nil); err == nil {
		t.Fatalf("expected panic converted to error")
	}
}
