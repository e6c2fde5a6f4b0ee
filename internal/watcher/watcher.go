// Package watcher runs one poller per monitored item: probe, record
// availability, and fan out throttled notifications.
package watcher

import (
	"context"
	"errors"
	"time"

	"stockwatch/internal/catalog"
	"stockwatch/internal/eventbus"
	"stockwatch/internal/eventlog"
	"stockwatch/internal/notify"
	"stockwatch/internal/probe"
	"stockwatch/internal/throttle"
	logx "stockwatch/pkg/logx"
)

const DefaultPollDelay = 5 * time.Second

// Watcher polls a single item forever. All steady-state failures are
// contained: probe errors downgrade to indeterminate, exhausted
// deliveries are logged and dropped. Only context cancellation ends
// the loop.
type Watcher struct {
	item      *catalog.Item
	subs      []*catalog.Subscriber
	prober    probe.Prober
	throttle  *throttle.Engine
	deliverer *notify.Deliverer
	events    *eventlog.Log
	bus       eventbus.Bus
	pollDelay time.Duration
	log       logx.Logger

	// observePoll is an optional metrics hook (item key, result name).
	observePoll func(itemKey, result string)
}

type Options struct {
	Item      *catalog.Item
	Subs      []*catalog.Subscriber
	Prober    probe.Prober
	Throttle  *throttle.Engine
	Deliverer *notify.Deliverer
	Events    *eventlog.Log
	Bus       eventbus.Bus
	PollDelay time.Duration
	Log       logx.Logger

	ObservePoll func(itemKey, result string)
}

func New(opts Options) *Watcher {
	delay := opts.PollDelay
	if delay <= 0 {
		delay = DefaultPollDelay
	}
	return &Watcher{
		item:        opts.Item,
		subs:        opts.Subs,
		prober:      opts.Prober,
		throttle:    opts.Throttle,
		deliverer:   opts.Deliverer,
		events:      opts.Events,
		bus:         opts.Bus,
		pollDelay:   delay,
		log:         opts.Log.With(logx.String("item", opts.Item.Key)),
		observePoll: opts.ObservePoll,
	}
}

// Run polls until ctx is done. The inter-poll delay is a rate limit on
// the probe target, not a correctness requirement.
func (w *Watcher) Run(ctx context.Context) error {
	w.log.Info("watching", logx.Int("subscribers", len(w.subs)))

	t := time.NewTimer(0)
	defer t.Stop()
	// Drain the immediate first tick so the loop below owns the timer.
	<-t.C

	for {
		w.check(ctx)

		t.Reset(w.pollDelay)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
}

func (w *Watcher) check(ctx context.Context) {
	res, err := w.prober.Probe(ctx, w.item)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		// Probe errors never escalate; the next cycle retries.
		res = probe.Indeterminate
		w.log.Info("probe failed", logx.Err(err))
	}

	if w.observePoll != nil {
		w.observePoll(w.item.Key, res.String())
	}

	switch res {
	case probe.Available:
		w.onAvailable(ctx)
	case probe.Unavailable:
		w.log.Trace("out of stock")
	default:
		w.log.Debug("indeterminate probe result")
	}
}

func (w *Watcher) onAvailable(ctx context.Context) {
	now := time.Now()
	w.events.Record(w.item.Key, now)
	w.bus.Publish(eventbus.Event{Type: eventbus.TypeItemAvailable, Time: now, ItemKey: w.item.Key})
	w.log.Info("in stock", logx.String("url", w.item.URL))

	msg := notify.NewMessage(w.item, now)

	for _, sub := range w.subs {
		if !w.throttle.ShouldFire(w.item.Key, sub.Address, sub.Interval, time.Now()) {
			w.log.Debug("notification suppressed", logx.String("subscriber", sub.Address))
			continue
		}

		// Delivery (including its retries) runs on this item's own
		// goroutine, so a slow sink never blocks other items.
		if err := w.deliverer.Deliver(ctx, sub, msg); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			w.log.Error("notification dropped",
				logx.String("subscriber", sub.Address), logx.Err(err))
			w.bus.Publish(eventbus.Event{
				Type:       eventbus.TypeNotifyFailed,
				ItemKey:    w.item.Key,
				Subscriber: sub.Address,
				Channel:    sub.Channel,
				Error:      err.Error(),
			})
			continue
		}

		w.log.Info("notified", logx.String("subscriber", sub.Address))
		w.bus.Publish(eventbus.Event{
			Type:       eventbus.TypeNotifySent,
			ItemKey:    w.item.Key,
			Subscriber: sub.Address,
			Channel:    sub.Channel,
		})
	}
}
