// Package app wires configuration, catalog, probing, notification and
// persistence into a running daemon.
package app

import (
	"context"
	"fmt"
	"time"

	"stockwatch/internal/catalog"
	"stockwatch/internal/config"
	"stockwatch/internal/eventbus"
	"stockwatch/internal/eventlog"
	"stockwatch/internal/metrics"
	"stockwatch/internal/notify"
	"stockwatch/internal/probe"
	"stockwatch/internal/runtime/supervisor"
	"stockwatch/internal/throttle"
	"stockwatch/internal/watcher"
	logx "stockwatch/pkg/logx"
)

type App struct {
	cfgPath string
	cfg     *config.Config

	log  logx.Logger
	logs *logx.Service
	sup  *supervisor.Supervisor

	bus      eventbus.Bus
	items    []*catalog.Item
	subs     []*catalog.Subscriber
	index    *catalog.Index
	prober   probe.Prober
	throttle *throttle.Engine
	deliver  *notify.Deliverer

	events  *eventlog.Log
	store   eventlog.Store
	chkp    *eventlog.Checkpointer
	metrics *metrics.Service

	pollDelay time.Duration
}

// New loads the configuration at cfgPath and constructs every
// component. Nothing is running until Start.
func New(cfgPath string) (*App, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	log = log.With(logx.String("comp", "app"))

	items, err := catalog.BuildItems(cfg.Catalog)
	if err != nil {
		return nil, err
	}

	entries, err := config.LoadSubscribers(cfg.SubscribersFile)
	if err != nil {
		return nil, fmt.Errorf("subscribers: %w", err)
	}
	defaultChannel := cfg.Notify.Channel
	if defaultChannel == "" {
		defaultChannel = catalog.ChannelSMTP
	}
	subs, err := catalog.BuildSubscribers(entries, defaultChannel)
	if err != nil {
		return nil, fmt.Errorf("subscribers: %w", err)
	}
	index := catalog.BuildIndex(items, subs)

	store, err := eventlog.Open(cfg.EventLog, log.With(logx.String("comp", "eventlog")))
	if err != nil {
		return nil, err
	}
	snap, err := store.Load()
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("eventlog: %w", err)
	}
	events := eventlog.NewFromSnapshot(snap)
	keys := make([]string, 0, len(items))
	for _, it := range items {
		keys = append(keys, it.Key)
	}
	events.EnsureItems(keys)

	var prober probe.Prober
	if cfg.Probe.TestMode {
		log.Warn("test mode: every probe reports available")
		prober = probe.Static{Result: probe.Available}
	} else {
		p, err := probe.NewHTTP(cfg.Probe, log.With(logx.String("comp", "probe")))
		if err != nil {
			store.Close()
			return nil, err
		}
		prober = p
	}

	sinks, err := buildSinks(cfg.Notify, subs)
	if err != nil {
		store.Close()
		return nil, err
	}
	deliver, err := notify.NewDeliverer(cfg.Notify, sinks, log.With(logx.String("comp", "notify")))
	if err != nil {
		store.Close()
		return nil, err
	}

	pollDelay, err := config.ParseDurationOrDefault("probe.poll_delay", cfg.Probe.PollDelay, watcher.DefaultPollDelay)
	if err != nil {
		store.Close()
		return nil, err
	}
	chkpEvery, err := config.ParseDurationOrDefault("eventlog.checkpoint_every", cfg.EventLog.CheckpointEvery, eventlog.DefaultCheckpointEvery)
	if err != nil {
		store.Close()
		return nil, err
	}

	bus := eventbus.New()

	var msvc *metrics.Service
	if cfg.Metrics.Enabled {
		msvc = metrics.New(cfg.Metrics.Addr, log.With(logx.String("comp", "metrics")))
	}

	return &App{
		cfgPath:   cfgPath,
		cfg:       cfg,
		log:       log,
		logs:      logSvc,
		bus:       bus,
		items:     items,
		subs:      subs,
		index:     index,
		prober:    prober,
		throttle:  throttle.New(),
		deliver:   deliver,
		events:    events,
		store:     store,
		chkp:      eventlog.NewCheckpointer(events, store, chkpEvery, bus, log.With(logx.String("comp", "checkpoint"))),
		metrics:   msvc,
		pollDelay: pollDelay,
	}, nil
}

// buildSinks constructs one sink per channel any subscriber uses and
// fails fast on channels that lack credentials.
func buildSinks(cfg config.NotifyConfig, subs []*catalog.Subscriber) (map[string]notify.Sink, error) {
	need := map[string]bool{}
	for _, s := range subs {
		need[s.Channel] = true
	}

	sinks := make(map[string]notify.Sink, len(need))
	if need[catalog.ChannelSMTP] {
		s, err := notify.NewSMTP(cfg.SMTP)
		if err != nil {
			return nil, err
		}
		sinks[catalog.ChannelSMTP] = s
	}
	if need[catalog.ChannelTelegram] {
		t, err := notify.NewTelegram(cfg.Telegram)
		if err != nil {
			return nil, err
		}
		sinks[catalog.ChannelTelegram] = t
	}
	return sinks, nil
}

// Start launches the watchers and supporting services under a
// supervisor bound to ctx.
func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log))

	a.log.Info("starting",
		logx.Int("items", len(a.items)),
		logx.Int("subscribers", len(a.subs)),
		logx.Duration("poll_delay", a.pollDelay))

	observe := func(string, string) {}
	if a.metrics != nil {
		observe = a.metrics.ObservePoll
		a.sup.Go("metrics", func(c context.Context) error {
			return a.metrics.Run(c, a.bus)
		})
	}

	for _, it := range a.items {
		w := watcher.New(watcher.Options{
			Item:        it,
			Subs:        a.index.For(it.Key),
			Prober:      a.prober,
			Throttle:    a.throttle,
			Deliverer:   a.deliver,
			Events:      a.events,
			Bus:         a.bus,
			PollDelay:   a.pollDelay,
			Log:         a.log,
			ObservePoll: observe,
		})
		a.sup.Go("watch."+it.Key, w.Run)
	}

	a.sup.Go("checkpoint", a.chkp.Run)

	// Runtime logging reload. Catalog and subscriber changes require a
	// restart, so only the logging section is applied live.
	a.sup.Go0("config.watch", func(c context.Context) {
		err := config.Watch(c, a.cfgPath, a.log.With(logx.String("comp", "config")), func(cfg *config.Config) {
			a.logs.Apply(logx.Config{
				Level:   cfg.Logging.Level,
				Console: cfg.Logging.Console,
				File: logx.FileConfig{
					Enabled: cfg.Logging.File.Enabled,
					Path:    cfg.Logging.File.Path,
				},
			})
			a.log.Info("logging config applied", logx.String("level", cfg.Logging.Level))
		})
		if err != nil && c.Err() == nil {
			a.log.Warn("config watch stopped", logx.Err(err))
		}
	})

	return nil
}

// Done is closed when the supervisor context ends.
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

// Stop shuts the supervisor down (the checkpointer writes its final
// snapshot on the way out) and closes the store.
func (a *App) Stop(timeout time.Duration) error {
	var firstErr error
	if a.sup != nil {
		firstErr = a.sup.Stop(timeout)
	}
	if err := a.store.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := a.logs.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
