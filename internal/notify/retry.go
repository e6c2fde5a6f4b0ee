package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"stockwatch/internal/catalog"
	"stockwatch/internal/config"
	logx "stockwatch/pkg/logx"
)

const (
	defaultRetryMax  = 5
	defaultRetryBase = 5 * time.Second
)

// ErrExhausted is returned when every delivery attempt failed.
var ErrExhausted = errors.New("delivery attempts exhausted")

// Deliverer wraps sinks with bounded retries. Backoff is linear: after
// the n-th failed attempt it sleeps base*n before the next one, so with
// the defaults a fully failing delivery takes 5+10+15+20 seconds across
// five attempts.
type Deliverer struct {
	sinks       map[string]Sink
	maxAttempts int
	base        time.Duration
	log         logx.Logger
}

func NewDeliverer(cfg config.NotifyConfig, sinks map[string]Sink, log logx.Logger) (*Deliverer, error) {
	base, err := config.ParseDurationOrDefault("notify.retry_base", cfg.RetryBase, defaultRetryBase)
	if err != nil {
		return nil, err
	}
	maxAttempts := cfg.RetryMax
	if maxAttempts <= 0 {
		maxAttempts = defaultRetryMax
	}
	return &Deliverer{
		sinks:       sinks,
		maxAttempts: maxAttempts,
		base:        base,
		log:         log,
	}, nil
}

// Deliver attempts to send msg to sub until one attempt succeeds or the
// attempt budget is spent. Every sink error is treated as retryable.
// The caller has already committed the throttle timestamp, so exhaustion
// is surfaced (wrapped ErrExhausted) but never retried beyond the bound.
func (d *Deliverer) Deliver(ctx context.Context, sub *catalog.Subscriber, msg Message) error {
	sink := d.sinks[sub.Channel]
	if sink == nil {
		return fmt.Errorf("no sink for channel %q", sub.Channel)
	}

	var lastErr error
	for attempt := 1; attempt <= d.maxAttempts; attempt++ {
		lastErr = sink.Send(ctx, sub, msg)
		if lastErr == nil {
			if attempt > 1 {
				d.log.Info("delivered after retry",
					logx.String("item", msg.ItemKey),
					logx.String("subscriber", sub.Address),
					logx.Int("attempt", attempt))
			}
			return nil
		}

		d.log.Warn("delivery attempt failed",
			logx.String("item", msg.ItemKey),
			logx.String("subscriber", sub.Address),
			logx.Int("attempt", attempt),
			logx.Int("max", d.maxAttempts),
			logx.Err(lastErr))

		if attempt == d.maxAttempts {
			break
		}

		delay := d.base * time.Duration(attempt)
		t := time.NewTimer(delay)
		select {
		case <-t.C:
		case <-ctx.Done():
			if !t.Stop() {
				<-t.C
			}
			return ctx.Err()
		}
	}

	return fmt.Errorf("%w after %d attempts: %v", ErrExhausted, d.maxAttempts, lastErr)
}
