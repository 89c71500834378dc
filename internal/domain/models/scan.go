package models

import "time"

// ScanResult is the outcome of one pass over the symbol universe.
type ScanResult struct {
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
	Scanned    int              `json:"scanned"`
	Signals    []EnhancedSignal `json:"signals"`
	Top        []EnhancedSignal `json:"top"`
	Trades     []Trade          `json:"trades"`
	Rejections map[string]int   `json:"rejections"`
	Reports    []string         `json:"reports,omitempty"`
}

// AutomationSettings are the operator-tunable scan parameters.
type AutomationSettings struct {
	Interval time.Duration `json:"interval"`
	TopN     int           `json:"top_n"`
}

// AutomationStats are cumulative counters persisted across restarts.
type AutomationStats struct {
	SignalsGenerated int       `json:"signals_generated"`
	TradesExecuted   int       `json:"trades_executed"`
	Cycles           int       `json:"cycles"`
	LastUpdate       time.Time `json:"last_update"`
}

// RiskLimits bound automated trading.
type RiskLimits struct {
	InitialCapital float64 `json:"initial_capital"`
	MaxDrawdownPct float64 `json:"max_drawdown_pct"`
	MaxDailyTrades int     `json:"max_daily_trades"`
}

type SchedulerStatus struct {
	Running         bool            `json:"running"`
	IntervalSeconds int             `json:"interval_seconds"`
	TopN            int             `json:"top_n"`
	LastRun         *time.Time      `json:"last_run,omitempty"`
	NextRun         *time.Time      `json:"next_run,omitempty"`
	LastError       string          `json:"last_error,omitempty"`
	Blocked         string          `json:"blocked,omitempty"`
	Stats           AutomationStats `json:"stats"`
	Limits          RiskLimits      `json:"limits"`
}

// SettingsUpdate carries optional overrides; nil fields are left unchanged.
type SettingsUpdate struct {
	IntervalSeconds *int `json:"interval_seconds"`
	TopN            *int `json:"top_n"`
}

// Settings store keys.
const (
	SettingScanInterval    = "SCAN_INTERVAL"
	SettingTopN            = "TOP_N_SIGNALS"
	SettingAutomationStats = "AUTOMATION_STATS"
)
