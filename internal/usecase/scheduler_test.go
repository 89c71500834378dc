package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"CoinPull/internal/domain/models"
)

var fastLoop = SchedulerConfig{CheckEvery: 5 * time.Millisecond, RiskCooldown: 5 * time.Millisecond, ErrorBackoff: 5 * time.Millisecond}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestSchedulerLifecycle(t *testing.T) {
	f := newScanFixture(t)
	risk := NewRiskGuard(f.trades, models.RiskLimits{InitialCapital: 100, MaxDrawdownPct: 20, MaxDailyTrades: 50})
	sch := NewScheduler(f.scanner, risk, f.settings, fastLoop)
	ctx := context.Background()

	if err := sch.Stop(ctx); !errors.Is(err, models.ErrNotRunning) {
		t.Fatalf("stop before start: %v", err)
	}
	if err := sch.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := sch.Start(ctx); !errors.Is(err, models.ErrAlreadyRunning) {
		t.Fatalf("second start: %v", err)
	}
	waitFor(t, "first cycle", func() bool { return sch.Status().Stats.Cycles >= 1 })

	st := sch.Status()
	if !st.Running || st.LastRun == nil || st.NextRun == nil || st.IntervalSeconds != 900 || st.Limits.MaxDailyTrades != 50 {
		t.Fatalf("unexpected status %+v", st)
	}
	if st.Stats.SignalsGenerated != 1 || st.Stats.TradesExecuted != 1 {
		t.Fatalf("stats = %+v", st.Stats)
	}

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := sch.Stop(stopCtx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if sch.Status().Running {
		t.Fatalf("still running after stop")
	}

	raw, ok, _ := f.settings.Get(ctx, models.SettingAutomationStats)
	var persisted models.AutomationStats
	if !ok || json.Unmarshal([]byte(raw), &persisted) != nil || persisted.Cycles != 1 {
		t.Fatalf("stats not persisted: %q", raw)
	}

	// stats survive a restart
	again := NewScheduler(f.scanner, risk, f.settings, fastLoop)
	if err := again.Start(ctx); err != nil {
		t.Fatalf("restart: %v", err)
	}
	defer again.Stop(stopCtx)
	if again.Status().Stats.Cycles < 1 {
		t.Fatalf("persisted stats not loaded")
	}
}

func TestSchedulerBlockedByRisk(t *testing.T) {
	f := newScanFixture(t)
	ctx := context.Background()
	past := time.Now().Add(-72 * time.Hour)
	if err := f.trades.Open(ctx, models.Trade{ID: "loss", Symbol: "BTCUSDT", Side: models.SideLong, Status: models.TradeOpen, OpenedAt: past}); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := f.trades.Close(ctx, "loss", -50, past); err != nil {
		t.Fatalf("Close: %v", err)
	}
	risk := NewRiskGuard(f.trades, models.RiskLimits{InitialCapital: 100, MaxDrawdownPct: 20, MaxDailyTrades: 50})
	sch := NewScheduler(f.scanner, risk, f.settings, fastLoop)
	if err := sch.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, "risk block", func() bool { return sch.Status().Blocked != "" })
	if err := sch.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if st := sch.Status(); st.Stats.Cycles != 0 || st.LastRun != nil {
		t.Fatalf("blocked scheduler must not scan: %+v", st)
	}
}

func TestSchedulerUpdateSettings(t *testing.T) {
	f := newScanFixture(t)
	sch := NewScheduler(f.scanner, nil, f.settings, fastLoop)
	ctx := context.Background()
	interval, top := 120, 3
	st, err := sch.UpdateSettings(ctx, models.SettingsUpdate{IntervalSeconds: &interval, TopN: &top})
	if err != nil {
		t.Fatalf("UpdateSettings: %v", err)
	}
	if st.IntervalSeconds != 120 || st.TopN != 3 {
		t.Fatalf("status not updated: %+v", st)
	}
	if v, _, _ := f.settings.Get(ctx, models.SettingTopN); v != "3" {
		t.Fatalf("top_n not stored: %q", v)
	}
	zero := 0
	if _, err := sch.UpdateSettings(ctx, models.SettingsUpdate{TopN: &zero}); !errors.Is(err, models.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
	if err := sch.TriggerNow(); !errors.Is(err, models.ErrNotRunning) {
		t.Fatalf("trigger while stopped: %v", err)
	}
}

func TestSchedulerUpdateSettingsWithoutStore(t *testing.T) {
	f := newScanFixture(t)
	sch := NewScheduler(f.scanner, nil, nil, fastLoop)
	ctx := context.Background()
	before := sch.Status()

	neg := -5
	if _, err := sch.UpdateSettings(ctx, models.SettingsUpdate{IntervalSeconds: &neg}); !errors.Is(err, models.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
	if st := sch.Status(); st.IntervalSeconds != before.IntervalSeconds {
		t.Fatalf("rejected interval applied: %d", st.IntervalSeconds)
	}

	interval := 300
	st, err := sch.UpdateSettings(ctx, models.SettingsUpdate{IntervalSeconds: &interval})
	if err != nil || st.IntervalSeconds != 300 {
		t.Fatalf("valid update without store: %+v, %v", st, err)
	}
}

func TestSaveSettingsRejectsBeforeWriting(t *testing.T) {
	f := newScanFixture(t)
	ctx := context.Background()
	interval, zero := 120, 0
	err := saveSettings(ctx, f.settings, models.SettingsUpdate{IntervalSeconds: &interval, TopN: &zero})
	if !errors.Is(err, models.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
	if _, ok, _ := f.settings.Get(ctx, models.SettingScanInterval); ok {
		t.Fatalf("interval stored despite invalid top_n")
	}
}

func TestSchedulerTriggerNow(t *testing.T) {
	f := newScanFixture(t)
	sch := NewScheduler(f.scanner, nil, f.settings, SchedulerConfig{CheckEvery: time.Hour})
	ctx := context.Background()
	if err := sch.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer sch.Stop(ctx)
	waitFor(t, "first cycle", func() bool { return sch.Status().Stats.Cycles == 1 })
	if err := sch.TriggerNow(); err != nil {
		t.Fatalf("TriggerNow: %v", err)
	}
	waitFor(t, "triggered cycle", func() bool { return sch.Status().Stats.Cycles == 2 })
}
