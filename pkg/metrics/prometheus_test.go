package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorderCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewWithRegistry(reg)

	r.RecordScan(2*time.Second, 80, 3)
	r.RecordRejection("no_consensus")
	r.RecordRejection("no_consensus")
	r.RecordSignal("LONG", "Trend")
	r.RecordError("notify_discord")
	r.RecordLatency("analyze", 0.2)

	if v := testutil.ToFloat64(r.rejections.WithLabelValues("no_consensus")); v != 2 {
		t.Fatalf("rejections = %v, want 2", v)
	}
	if v := testutil.ToFloat64(r.symbols); v != 80 {
		t.Fatalf("symbols gauge = %v", v)
	}
	if v := testutil.ToFloat64(r.signals.WithLabelValues("LONG", "Trend")); v != 1 {
		t.Fatalf("signals = %v", v)
	}
	if n := testutil.CollectAndCount(r.latency); n != 1 {
		t.Fatalf("latency series = %d", n)
	}
}
