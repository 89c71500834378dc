package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"CoinPull/internal/domain/models"
	drepo "CoinPull/internal/domain/repository"
	domsvc "CoinPull/internal/domain/service"
	applogger "CoinPull/pkg/logger"
)

// Manager fans a notification out to every enabled channel. A failing channel
// does not stop the others; the errors are joined.
type Manager struct {
	notifiers []domsvc.Notifier
	metrics   drepo.Metrics
	log       *applogger.Logger
}

func NewManager(notifiers ...domsvc.Notifier) *Manager {
	return &Manager{notifiers: notifiers}
}

func (m *Manager) SetLogger(l *applogger.Logger) { m.log = l }

func (m *Manager) SetMetrics(mt drepo.Metrics) { m.metrics = mt }

// Add registers another channel.
func (m *Manager) Add(n domsvc.Notifier) { m.notifiers = append(m.notifiers, n) }

// Enabled lists the names of active channels.
func (m *Manager) Enabled() []string {
	var out []string
	for _, n := range m.notifiers {
		if n.IsEnabled() {
			out = append(out, n.Name())
		}
	}
	return out
}

func (m *Manager) Name() string { return "manager" }

func (m *Manager) IsEnabled() bool { return len(m.Enabled()) > 0 }

func (m *Manager) NotifySignal(ctx context.Context, s models.EnhancedSignal) error {
	return m.each(ctx, "signal", func(n domsvc.Notifier) error { return n.NotifySignal(ctx, s) })
}

func (m *Manager) NotifyTop(ctx context.Context, top []models.EnhancedSignal) error {
	if len(top) == 0 {
		return nil
	}
	return m.each(ctx, "top", func(n domsvc.Notifier) error { return n.NotifyTop(ctx, top) })
}

func (m *Manager) NotifyTrade(ctx context.Context, t models.Trade) error {
	return m.each(ctx, "trade", func(n domsvc.Notifier) error { return n.NotifyTrade(ctx, t) })
}

func (m *Manager) each(_ context.Context, kind string, fn func(domsvc.Notifier) error) error {
	var errs []error
	for _, n := range m.notifiers {
		if !n.IsEnabled() {
			continue
		}
		start := time.Now()
		err := fn(n)
		if m.metrics != nil {
			m.metrics.RecordLatency("notify_"+n.Name(), time.Since(start).Seconds())
		}
		if err != nil {
			if m.metrics != nil {
				m.metrics.RecordError("notify_" + n.Name())
			}
			if m.log != nil {
				m.log.Warn("notification failed",
					applogger.String("channel", n.Name()),
					applogger.String("kind", kind),
					applogger.Error(err),
				)
			}
			errs = append(errs, fmt.Errorf("%s: %w", n.Name(), err))
		}
	}
	return errors.Join(errs...)
}

var _ domsvc.Notifier = (*Manager)(nil)
