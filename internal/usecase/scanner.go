package usecase

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"CoinPull/internal/domain/models"
	domrepo "CoinPull/internal/domain/repository"
	domsvc "CoinPull/internal/domain/service"
	applogger "CoinPull/pkg/logger"
)

// ReportExporter writes a scan result somewhere durable.
type ReportExporter interface {
	Enabled() bool
	Export(ctx context.Context, res models.ScanResult) ([]string, error)
}

// Scanner runs one analysis pass over the symbol universe.
type Scanner struct {
	market   domrepo.MarketData
	analyzer *Analyzer
	scorer   *Scorer
	signals  domrepo.SignalStore

	publisher domrepo.SignalPublisher
	notifier  domsvc.Notifier
	executor  domrepo.Executor
	exporter  ReportExporter
	settings  domrepo.SettingsStore
	metrics   domrepo.Metrics
	log       *applogger.Logger

	defaults models.AutomationSettings
	// archived is set when the publisher's consumer persists signals, so the
	// scanner does not write them twice.
	archived bool

	running atomic.Bool
	mu      sync.RWMutex
	latest  *models.ScanResult
	now     func() time.Time
}

type ScannerOption func(*Scanner)

func WithPublisher(p domrepo.SignalPublisher) ScannerOption {
	return func(s *Scanner) { s.publisher = p }
}

func WithNotifier(n domsvc.Notifier) ScannerOption { return func(s *Scanner) { s.notifier = n } }

func WithExecutor(e domrepo.Executor) ScannerOption { return func(s *Scanner) { s.executor = e } }

func WithExporter(e ReportExporter) ScannerOption { return func(s *Scanner) { s.exporter = e } }

func WithSettingsStore(st domrepo.SettingsStore) ScannerOption {
	return func(s *Scanner) { s.settings = st }
}

// WithScanDefaults sets the interval and top-N used when no override is stored.
func WithScanDefaults(d models.AutomationSettings) ScannerOption {
	return func(s *Scanner) { s.defaults = d }
}

// WithArchivedPublishing skips the inline store write; the signal topic
// consumer persists published signals instead.
func WithArchivedPublishing() ScannerOption { return func(s *Scanner) { s.archived = true } }

func NewScanner(market domrepo.MarketData, analyzer *Analyzer, scorer *Scorer, signals domrepo.SignalStore, opts ...ScannerOption) *Scanner {
	s := &Scanner{
		market:   market,
		analyzer: analyzer,
		scorer:   scorer,
		signals:  signals,
		defaults: models.AutomationSettings{Interval: 900 * time.Second, TopN: 5},
		now:      time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Scanner) SetLogger(l *applogger.Logger) { s.log = l }

func (s *Scanner) SetMetrics(m domrepo.Metrics) { s.metrics = m }

// Defaults returns the configured automation settings.
func (s *Scanner) Defaults() models.AutomationSettings { return s.defaults }

// Running reports whether a scan is in progress.
func (s *Scanner) Running() bool { return s.running.Load() }

// Latest returns the last completed scan, if any.
func (s *Scanner) Latest() (models.ScanResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.latest == nil {
		return models.ScanResult{}, false
	}
	return *s.latest, true
}

// RunOnce scans every symbol sequentially. Only one scan runs at a time;
// a concurrent call gets models.ErrScanInProgress. Per-symbol store and
// notification failures are logged and do not abort the scan.
func (s *Scanner) RunOnce(ctx context.Context) (models.ScanResult, error) {
	if !s.running.CompareAndSwap(false, true) {
		return models.ScanResult{}, models.ErrScanInProgress
	}
	defer s.running.Store(false)

	res := models.ScanResult{
		StartedAt:  s.now().UTC(),
		Signals:    []models.EnhancedSignal{},
		Top:        []models.EnhancedSignal{},
		Trades:     []models.Trade{},
		Rejections: map[string]int{},
	}
	settings, err := loadSettings(ctx, s.settings, s.defaults)
	if err != nil {
		s.warn("settings unavailable, using defaults", applogger.Error(err))
		settings = s.defaults
	}

	symbols, err := s.market.Universe(ctx)
	if err != nil {
		s.recordError("universe")
		return res, fmt.Errorf("scan: universe: %w", err)
	}
	s.info("scan started", applogger.Int("symbols", len(symbols)), applogger.Int("top_n", settings.TopN))

	for _, sym := range symbols {
		if err := ctx.Err(); err != nil {
			return res, fmt.Errorf("scan: %w", err)
		}
		res.Scanned++
		trace, err := s.analyzer.Inspect(ctx, sym)
		if err != nil {
			s.warn("analyze failed", applogger.String("symbol", sym), applogger.Error(err))
			res.Rejections["other"]++
			continue
		}
		if trace.Signal == nil {
			res.Rejections[trace.ReasonText()]++
			continue
		}
		sig := s.scorer.Enhance(ctx, *trace.Signal)
		s.deliver(ctx, sig)
		res.Signals = append(res.Signals, sig)
	}

	res.Top = RankAndSelect(res.Signals, settings.TopN)
	if s.notifier != nil && len(res.Top) > 0 {
		if err := s.notifier.NotifyTop(ctx, res.Top); err != nil {
			s.warn("notify top failed", applogger.Error(err))
		}
	}
	res.Trades = s.execute(ctx, res.Top)
	res.FinishedAt = s.now().UTC()

	if s.exporter != nil && s.exporter.Enabled() {
		paths, err := s.exporter.Export(ctx, res)
		if err != nil {
			s.recordError("report")
			s.warn("report export failed", applogger.Error(err))
		}
		res.Reports = paths
	}
	if s.metrics != nil {
		s.metrics.RecordScan(res.FinishedAt.Sub(res.StartedAt), res.Scanned, len(res.Signals))
	}

	s.mu.Lock()
	latest := res
	s.latest = &latest
	s.mu.Unlock()

	s.info("scan finished",
		applogger.Int("scanned", res.Scanned),
		applogger.Int("signals", len(res.Signals)),
		applogger.Int("trades", len(res.Trades)),
		applogger.Duration("took", res.FinishedAt.Sub(res.StartedAt)),
	)
	return res, nil
}

// deliver persists, publishes and announces one signal.
func (s *Scanner) deliver(ctx context.Context, sig models.EnhancedSignal) {
	if s.signals != nil && !(s.archived && s.publisher != nil) {
		if err := s.signals.Save(ctx, sig); err != nil {
			s.recordError("signal_store")
			s.warn("save signal failed", applogger.String("symbol", sig.Symbol), applogger.Error(err))
		}
	}
	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, sig); err != nil {
			s.recordError("publish")
			s.warn("publish signal failed", applogger.String("symbol", sig.Symbol), applogger.Error(err))
		}
	}
	if s.notifier != nil {
		if err := s.notifier.NotifySignal(ctx, sig); err != nil {
			s.recordError("notify")
			s.warn("notify signal failed", applogger.String("symbol", sig.Symbol), applogger.Error(err))
		}
	}
}

func (s *Scanner) execute(ctx context.Context, top []models.EnhancedSignal) []models.Trade {
	trades := []models.Trade{}
	if s.executor == nil {
		return trades
	}
	for _, sig := range top {
		tr, err := s.executor.Execute(ctx, sig)
		if err != nil {
			s.recordError("execute")
			s.warn("execute failed", applogger.String("symbol", sig.Symbol), applogger.Error(err))
			continue
		}
		trades = append(trades, tr)
		if s.notifier != nil {
			if err := s.notifier.NotifyTrade(ctx, tr); err != nil {
				s.warn("notify trade failed", applogger.String("symbol", tr.Symbol), applogger.Error(err))
			}
		}
	}
	return trades
}

func (s *Scanner) recordError(kind string) {
	if s.metrics != nil {
		s.metrics.RecordError(kind)
	}
}

func (s *Scanner) info(msg string, fields ...applogger.Field) {
	if s.log != nil {
		s.log.Info(msg, fields...)
	}
}

func (s *Scanner) warn(msg string, fields ...applogger.Field) {
	if s.log != nil {
		s.log.Warn(msg, fields...)
	}
}
