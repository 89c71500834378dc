package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"CoinPull/internal/domain/models"
	domrepo "CoinPull/internal/domain/repository"
	applogger "CoinPull/pkg/logger"
)

// SchedulerConfig holds the loop timings.
type SchedulerConfig struct {
	CheckEvery   time.Duration
	RiskCooldown time.Duration
	ErrorBackoff time.Duration
}

func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{CheckEvery: 30 * time.Second, RiskCooldown: 60 * time.Second, ErrorBackoff: 90 * time.Second}
}

// Scheduler runs the scanner every interval while started. A cycle is
// skipped while the risk guard blocks trading.
type Scheduler struct {
	scanner  *Scanner
	risk     *RiskGuard
	settings domrepo.SettingsStore
	cfg      SchedulerConfig
	log      *applogger.Logger
	now      func() time.Time

	trigger chan struct{}

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
	current models.AutomationSettings
	force   bool
	lastRun time.Time
	lastErr string
	blocked string
	stats   models.AutomationStats
}

func NewScheduler(scanner *Scanner, risk *RiskGuard, settings domrepo.SettingsStore, cfg SchedulerConfig) *Scheduler {
	def := DefaultSchedulerConfig()
	if cfg.CheckEvery <= 0 {
		cfg.CheckEvery = def.CheckEvery
	}
	if cfg.RiskCooldown <= 0 {
		cfg.RiskCooldown = def.RiskCooldown
	}
	if cfg.ErrorBackoff <= 0 {
		cfg.ErrorBackoff = def.ErrorBackoff
	}
	return &Scheduler{
		scanner:  scanner,
		risk:     risk,
		settings: settings,
		cfg:      cfg,
		now:      time.Now,
		trigger:  make(chan struct{}, 1),
		current:  scanner.Defaults(),
	}
}

func (s *Scheduler) SetLogger(l *applogger.Logger) { s.log = l }

// Start launches the loop. The loop outlives ctx's cancellation and stops
// only through Stop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return models.ErrAlreadyRunning
	}

	current, err := loadSettings(ctx, s.settings, s.scanner.Defaults())
	if err != nil {
		return fmt.Errorf("scheduler start: %w", err)
	}
	stats, err := s.loadStats(ctx)
	if err != nil {
		return fmt.Errorf("scheduler start: %w", err)
	}
	s.current, s.stats = current, stats

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true
	go s.loop(loopCtx, s.done)

	s.info("automation started",
		applogger.Duration("interval", current.Interval),
		applogger.Int("top_n", current.TopN),
	)
	return nil
}

// Stop cancels the loop and waits for the running cycle until ctx expires.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return models.ErrNotRunning
	}
	s.running = false
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	cancel()
	select {
	case <-done:
	case <-ctx.Done():
		return fmt.Errorf("scheduler stop: %w", ctx.Err())
	}
	s.info("automation stopped")
	return nil
}

// TriggerNow runs a cycle at the next loop turn regardless of the interval.
func (s *Scheduler) TriggerNow() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return models.ErrNotRunning
	}
	s.force = true
	select {
	case s.trigger <- struct{}{}:
	default:
	}
	return nil
}

// UpdateSettings stores the overrides and applies them from the next check.
func (s *Scheduler) UpdateSettings(ctx context.Context, u models.SettingsUpdate) (models.SchedulerStatus, error) {
	if err := saveSettings(ctx, s.settings, u); err != nil {
		return models.SchedulerStatus{}, err
	}
	s.mu.Lock()
	if u.IntervalSeconds != nil {
		s.current.Interval = time.Duration(*u.IntervalSeconds) * time.Second
	}
	if u.TopN != nil {
		s.current.TopN = *u.TopN
	}
	s.mu.Unlock()
	return s.Status(), nil
}

func (s *Scheduler) Status() models.SchedulerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := models.SchedulerStatus{
		Running:         s.running,
		IntervalSeconds: int(s.current.Interval / time.Second),
		TopN:            s.current.TopN,
		LastError:       s.lastErr,
		Blocked:         s.blocked,
		Stats:           s.stats,
	}
	if s.risk != nil {
		st.Limits = s.risk.Limits()
	}
	if !s.lastRun.IsZero() {
		last := s.lastRun
		st.LastRun = &last
		if s.running {
			next := last.Add(s.current.Interval)
			st.NextRun = &next
		}
	}
	return st
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.cfg.CheckEvery)
	defer ticker.Stop()

	for {
		if s.due() {
			if wait := s.cycle(ctx); wait > 0 {
				if !sleepCtx(ctx, wait) {
					return
				}
				continue
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-s.trigger:
		}
	}
}

func (s *Scheduler) due() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.force || s.lastRun.IsZero() || s.now().Sub(s.lastRun) >= s.current.Interval
}

// cycle runs one guarded scan and returns how long to wait before the next
// check, or zero to resume the ticker.
func (s *Scheduler) cycle(ctx context.Context) time.Duration {
	if s.risk != nil {
		ok, reason, err := s.risk.Allow(ctx)
		if err != nil {
			s.fail("risk check failed", err)
			return s.cfg.ErrorBackoff
		}
		if !ok {
			s.mu.Lock()
			s.blocked = reason
			s.mu.Unlock()
			s.warn("automation blocked by risk limits", applogger.String("reason", reason))
			return s.cfg.RiskCooldown
		}
	}

	res, err := s.scanner.RunOnce(ctx)
	switch {
	case errors.Is(err, models.ErrScanInProgress):
		return 0
	case err != nil:
		if ctx.Err() != nil {
			return 0
		}
		s.fail("scan cycle failed", err)
		return s.cfg.ErrorBackoff
	}

	s.mu.Lock()
	s.force = false
	s.lastRun = s.now().UTC()
	s.lastErr, s.blocked = "", ""
	s.stats.Cycles++
	s.stats.SignalsGenerated += len(res.Signals)
	s.stats.TradesExecuted += len(res.Trades)
	s.stats.LastUpdate = s.lastRun
	stats := s.stats
	s.mu.Unlock()

	if err := s.saveStats(ctx, stats); err != nil {
		s.warn("persist automation stats", applogger.Error(err))
	}
	return 0
}

func (s *Scheduler) fail(msg string, err error) {
	s.mu.Lock()
	s.lastErr = err.Error()
	s.mu.Unlock()
	if s.log != nil {
		s.log.Error(msg, applogger.Error(err))
	}
}

func (s *Scheduler) loadStats(ctx context.Context) (models.AutomationStats, error) {
	var st models.AutomationStats
	if s.settings == nil {
		return st, nil
	}
	raw, ok, err := s.settings.Get(ctx, models.SettingAutomationStats)
	if err != nil || !ok {
		return st, err
	}
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		s.warn("discarding unreadable automation stats", applogger.Error(err))
		return models.AutomationStats{}, nil
	}
	return st, nil
}

func (s *Scheduler) saveStats(ctx context.Context, st models.AutomationStats) error {
	if s.settings == nil {
		return nil
	}
	b, err := json.Marshal(st)
	if err != nil {
		return err
	}
	return s.settings.Set(ctx, models.SettingAutomationStats, string(b))
}

func (s *Scheduler) info(msg string, fields ...applogger.Field) {
	if s.log != nil {
		s.log.Info(msg, fields...)
	}
}

func (s *Scheduler) warn(msg string, fields ...applogger.Field) {
	if s.log != nil {
		s.log.Warn(msg, fields...)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
