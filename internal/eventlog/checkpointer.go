package eventlog

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"stockwatch/internal/eventbus"
	logx "stockwatch/pkg/logx"
)

const DefaultCheckpointEvery = 5 * time.Second

// Checkpointer persists the in-memory log on a timer, independent of
// poll cycles, and once more on shutdown. Save failures are logged and
// retried on the next tick; they never stop the process.
type Checkpointer struct {
	log   *Log
	store Store
	every time.Duration
	bus   eventbus.Bus
	lg    logx.Logger
}

func NewCheckpointer(log *Log, store Store, every time.Duration, bus eventbus.Bus, lg logx.Logger) *Checkpointer {
	if every <= 0 {
		every = DefaultCheckpointEvery
	}
	return &Checkpointer{log: log, store: store, every: every, bus: bus, lg: lg}
}

// Run blocks until ctx is done, then attempts one final checkpoint.
func (c *Checkpointer) Run(ctx context.Context) error {
	// Sub-minute intervals need the seconds-aware parser.
	parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	sched := cron.New(cron.WithParser(parser))

	if _, err := sched.AddFunc("@every "+c.every.String(), func() { c.save() }); err != nil {
		return err
	}
	sched.Start()

	<-ctx.Done()
	<-sched.Stop().Done()

	// Final checkpoint so at most one interval's worth of events is lost.
	c.save()
	return nil
}

// Save performs a single checkpoint immediately.
func (c *Checkpointer) Save() error {
	return c.store.Save(c.log.Snapshot())
}

func (c *Checkpointer) save() {
	if err := c.Save(); err != nil {
		c.lg.Warn("checkpoint failed", logx.Err(err))
		if c.bus != nil {
			c.bus.Publish(eventbus.Event{Type: eventbus.TypeCheckpointFailed, Error: err.Error()})
		}
		return
	}
	c.lg.Trace("checkpoint saved")
	if c.bus != nil {
		c.bus.Publish(eventbus.Event{Type: eventbus.TypeCheckpointSaved})
	}
}
