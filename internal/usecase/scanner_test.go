package usecase

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"

	"CoinPull/internal/domain/models"
	"CoinPull/internal/repository"
	"CoinPull/internal/service/report"
)

type recordingNotifier struct {
	mu      sync.Mutex
	signals []string
	tops    int
	trades  []models.Trade
	failSig bool
}

func (n *recordingNotifier) Name() string    { return "recording" }
func (n *recordingNotifier) IsEnabled() bool { return true }

func (n *recordingNotifier) NotifySignal(_ context.Context, s models.EnhancedSignal) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.signals = append(n.signals, s.Symbol)
	if n.failSig {
		return errors.New("webhook down")
	}
	return nil
}

func (n *recordingNotifier) NotifyTop(context.Context, []models.EnhancedSignal) error {
	n.mu.Lock()
	n.tops++
	n.mu.Unlock()
	return nil
}

func (n *recordingNotifier) NotifyTrade(_ context.Context, t models.Trade) error {
	n.mu.Lock()
	n.trades = append(n.trades, t)
	n.mu.Unlock()
	return nil
}

type scanFixture struct {
	market   *fakeMarket
	signals  *repository.MemorySignalStore
	trades   *repository.MemoryTradeStore
	settings *repository.MemorySettingsStore
	notifier *recordingNotifier
	metrics  *fakeMetrics
	scanner  *Scanner
}

func newScanFixture(t *testing.T, opts ...ScannerOption) *scanFixture {
	t.Helper()
	f := &scanFixture{
		market:   newFakeMarket(),
		signals:  repository.NewMemorySignalStore(100),
		trades:   repository.NewMemoryTradeStore(),
		settings: repository.NewMemorySettingsStore(),
		notifier: &recordingNotifier{},
		metrics:  newFakeMetrics(),
	}
	f.market.universe = []string{"BTCUSDT", "THIN", "NEW"}
	f.market.setAll("BTCUSDT", trendCandles(60, 0.5, 5000))
	f.market.setAll("THIN", trendCandles(60, 0.5, 10))
	f.market.setAll("NEW", trendCandles(10, 0.5, 5000))

	analyzer := newTestAnalyzer(t, f.market)
	scorer := NewScorer(nil, WithRand(rand.New(rand.NewSource(1))))
	base := []ScannerOption{
		WithNotifier(f.notifier),
		WithExecutor(repository.NewPaperExecutor(f.trades)),
		WithExporter(report.NewExporter(t.TempDir())),
		WithSettingsStore(f.settings),
	}
	f.scanner = NewScanner(f.market, analyzer, scorer, f.signals, append(base, opts...)...)
	f.scanner.SetMetrics(f.metrics)
	return f
}

func TestRunOncePipeline(t *testing.T) {
	f := newScanFixture(t)
	ctx := context.Background()
	if _, ok := f.scanner.Latest(); ok {
		t.Fatalf("no latest result before the first scan")
	}

	res, err := f.scanner.RunOnce(ctx)
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if res.Scanned != 3 || len(res.Signals) != 1 || len(res.Top) != 1 || len(res.Trades) != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.Rejections["filter_rejected"] != 1 || res.Rejections["insufficient_data"] != 1 {
		t.Fatalf("rejections = %v", res.Rejections)
	}
	tr := res.Trades[0]
	if !tr.Virtual || tr.Symbol != "BTCUSDT" || tr.Status != models.TradeOpen {
		t.Fatalf("unexpected trade %+v", tr)
	}
	if len(res.Reports) != 3 {
		t.Fatalf("expected csv, json and trades report, got %v", res.Reports)
	}

	stored, _ := f.signals.Recent(ctx, "", 10)
	if len(stored) != 1 || stored[0].ScoredBy != models.ScoredByFallback {
		t.Fatalf("stored = %+v", stored)
	}
	if len(f.notifier.signals) != 1 || f.notifier.tops != 1 || len(f.notifier.trades) != 1 {
		t.Fatalf("notifications: %+v", f.notifier)
	}
	if n, _ := f.trades.CountOpenedSince(ctx, res.StartedAt.Add(-1)); n != 1 {
		t.Fatalf("trade not stored")
	}
	if f.metrics.scans != 1 {
		t.Fatalf("scan metric not recorded")
	}
	if latest, ok := f.scanner.Latest(); !ok || latest.Scanned != 3 {
		t.Fatalf("latest result not kept")
	}
}

func TestRunOnceNotifierFailureIsNotFatal(t *testing.T) {
	f := newScanFixture(t)
	f.notifier.failSig = true
	res, err := f.scanner.RunOnce(context.Background())
	if err != nil || len(res.Signals) != 1 {
		t.Fatalf("notify failure must not abort the scan: %v %+v", err, res)
	}
	if f.metrics.errors["notify"] != 1 {
		t.Fatalf("notify error not counted: %v", f.metrics.errors)
	}
}

func TestRunOnceTopNOverride(t *testing.T) {
	f := newScanFixture(t)
	f.market.universe = []string{"BTCUSDT", "ETHUSDT", "SOLUSDT"}
	f.market.setAll("ETHUSDT", trendCandles(60, 0.5, 5000))
	f.market.setAll("SOLUSDT", trendCandles(60, 0.5, 5000))
	if err := f.settings.Set(context.Background(), models.SettingTopN, "2"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	res, err := f.scanner.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if len(res.Signals) != 3 || len(res.Top) != 2 || len(res.Trades) != 2 {
		t.Fatalf("signals/top/trades = %d/%d/%d", len(res.Signals), len(res.Top), len(res.Trades))
	}
	if res.Top[0].Symbol != "BTCUSDT" || res.Top[1].Symbol != "ETHUSDT" {
		t.Fatalf("equal scores must keep scan order: %s %s", res.Top[0].Symbol, res.Top[1].Symbol)
	}
}

func TestRunOnceEmptyUniverse(t *testing.T) {
	f := newScanFixture(t)
	f.market.universe = nil
	res, err := f.scanner.RunOnce(context.Background())
	if err != nil || res.Scanned != 0 || len(res.Signals) != 0 || res.Top == nil {
		t.Fatalf("empty universe: %+v %v", res, err)
	}
}

func TestRunOnceRejectsConcurrentScan(t *testing.T) {
	f := newScanFixture(t)
	f.scanner.running.Store(true)
	if _, err := f.scanner.RunOnce(context.Background()); !errors.Is(err, models.ErrScanInProgress) {
		t.Fatalf("expected ErrScanInProgress, got %v", err)
	}
	if !f.scanner.Running() {
		t.Fatalf("a rejected call must not clear the running flag")
	}
}

func TestRunOnceCancelled(t *testing.T) {
	f := newScanFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := f.scanner.RunOnce(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if f.scanner.Running() {
		t.Fatalf("running flag left set")
	}
}
