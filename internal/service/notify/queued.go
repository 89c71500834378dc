package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"CoinPull/internal/domain/models"
	domsvc "CoinPull/internal/domain/service"
	"CoinPull/pkg/queue"
)

const (
	jobSignal = "notify.signal"
	jobTop    = "notify.top"
	jobTrade  = "notify.trade"
)

// delivery addresses one payload to one channel so a retry only repeats the
// channel that failed.
type delivery struct {
	Channel string          `json:"channel"`
	Data    json.RawMessage `json:"data"`
}

// Queued hands notifications to a durable queue instead of calling the
// channels inline. Jobs returns the handlers that perform the delivery.
type Queued struct {
	q        queue.Enqueuer
	channels map[string]domsvc.Notifier
	order    []string
}

func NewQueued(q queue.Enqueuer, notifiers ...domsvc.Notifier) *Queued {
	qd := &Queued{q: q, channels: make(map[string]domsvc.Notifier)}
	for _, n := range notifiers {
		if _, dup := qd.channels[n.Name()]; dup {
			continue
		}
		qd.channels[n.Name()] = n
		qd.order = append(qd.order, n.Name())
	}
	return qd
}

func (qd *Queued) Name() string { return "queued" }

func (qd *Queued) IsEnabled() bool {
	for _, n := range qd.channels {
		if n.IsEnabled() {
			return true
		}
	}
	return false
}

func (qd *Queued) NotifySignal(ctx context.Context, s models.EnhancedSignal) error {
	return qd.enqueue(ctx, jobSignal, s)
}

func (qd *Queued) NotifyTop(ctx context.Context, top []models.EnhancedSignal) error {
	if len(top) == 0 {
		return nil
	}
	return qd.enqueue(ctx, jobTop, top)
}

func (qd *Queued) NotifyTrade(ctx context.Context, t models.Trade) error {
	return qd.enqueue(ctx, jobTrade, t)
}

func (qd *Queued) enqueue(ctx context.Context, kind string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", kind, err)
	}
	var errs []error
	for _, name := range qd.order {
		if !qd.channels[name].IsEnabled() {
			continue
		}
		if err := qd.q.Enqueue(ctx, kind, delivery{Channel: name, Data: data}); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// Jobs returns one queue job per notification kind.
func (qd *Queued) Jobs() []queue.Job {
	return []queue.Job{
		deliveryJob{kind: jobSignal, qd: qd},
		deliveryJob{kind: jobTop, qd: qd},
		deliveryJob{kind: jobTrade, qd: qd},
	}
}

type deliveryJob struct {
	kind string
	qd   *Queued
}

func (j deliveryJob) Type() string { return j.kind }

func (j deliveryJob) Handle(ctx context.Context, payload json.RawMessage) error {
	d, err := queue.Decode[delivery](payload)
	if err != nil {
		return err
	}
	n, ok := j.qd.channels[d.Channel]
	if !ok {
		// channel removed from config since enqueue
		return nil
	}

	switch j.kind {
	case jobSignal:
		s, err := queue.Decode[models.EnhancedSignal](d.Data)
		if err != nil {
			return err
		}
		return n.NotifySignal(ctx, s)
	case jobTop:
		top, err := queue.Decode[[]models.EnhancedSignal](d.Data)
		if err != nil {
			return err
		}
		return n.NotifyTop(ctx, top)
	case jobTrade:
		t, err := queue.Decode[models.Trade](d.Data)
		if err != nil {
			return err
		}
		return n.NotifyTrade(ctx, t)
	}
	return fmt.Errorf("unknown notification kind %s", j.kind)
}

var _ domsvc.Notifier = (*Queued)(nil)
