package watcher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"stockwatch/internal/catalog"
	"stockwatch/internal/config"
	"stockwatch/internal/eventbus"
	"stockwatch/internal/eventlog"
	"stockwatch/internal/notify"
	"stockwatch/internal/probe"
	"stockwatch/internal/throttle"
	"stockwatch/pkg/logx"
)

// scriptProber returns a fixed sequence of results per item, repeating
// the last entry once the script is exhausted.
type scriptProber struct {
	mu     sync.Mutex
	script map[string][]probe.Result
	pos    map[string]int
}

func newScriptProber(script map[string][]probe.Result) *scriptProber {
	return &scriptProber{script: script, pos: map[string]int{}}
}

func (p *scriptProber) Probe(ctx context.Context, item *catalog.Item) (probe.Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	seq := p.script[item.Key]
	if len(seq) == 0 {
		return probe.Unavailable, nil
	}
	i := p.pos[item.Key]
	if i >= len(seq) {
		i = len(seq) - 1
	} else {
		p.pos[item.Key]++
	}
	return seq[i], nil
}

// recordSink counts deliveries per (subscriber, item).
type recordSink struct {
	mu    sync.Mutex
	calls map[string]int
	fail  bool
}

func newRecordSink() *recordSink { return &recordSink{calls: map[string]int{}} }

func (s *recordSink) Send(ctx context.Context, sub *catalog.Subscriber, msg notify.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("sink down")
	}
	s.calls[sub.Address+"|"+msg.ItemKey]++
	return nil
}

func (s *recordSink) count(addr, item string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[addr+"|"+item]
}

type fixture struct {
	items     []*catalog.Item
	index     *catalog.Index
	sink      *recordSink
	events    *eventlog.Log
	bus       eventbus.Bus
	deliverer *notify.Deliverer
	throttle  *throttle.Engine
}

func newFixture(t *testing.T, subs []*catalog.Subscriber) *fixture {
	t.Helper()
	items := []*catalog.Item{
		{Key: "white32", URL: "https://shop.example/w32", Attrs: map[string]string{"color": "white", "size": "32"}},
		{Key: "blue64", URL: "https://shop.example/b64", Attrs: map[string]string{"color": "blue", "size": "64"}},
	}
	sink := newRecordSink()
	deliverer, err := notify.NewDeliverer(
		config.NotifyConfig{RetryMax: 2, RetryBase: "1ms"},
		map[string]notify.Sink{catalog.ChannelSMTP: sink},
		logx.Nop(),
	)
	if err != nil {
		t.Fatalf("NewDeliverer: %v", err)
	}
	return &fixture{
		items:     items,
		index:     catalog.BuildIndex(items, subs),
		sink:      sink,
		events:    eventlog.New(),
		bus:       eventbus.New(),
		deliverer: deliverer,
		throttle:  throttle.New(),
	}
}

func (f *fixture) run(t *testing.T, prober probe.Prober, d time.Duration) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())

	var wg sync.WaitGroup
	for _, it := range f.items {
		w := New(Options{
			Item:      it,
			Subs:      f.index.For(it.Key),
			Prober:    prober,
			Throttle:  f.throttle,
			Deliverer: f.deliverer,
			Events:    f.events,
			Bus:       f.bus,
			PollDelay: time.Millisecond,
			Log:       logx.Nop(),
		})
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = w.Run(ctx)
		}()
	}

	time.Sleep(d)
	cancel()
	wg.Wait()
}

func TestSingleAvailabilityNotifiesOnce(t *testing.T) {
	subs, err := catalog.BuildSubscribers(map[string]*config.SubscriberConfig{
		"a@x.com": nil, // all items, interval 0
	}, catalog.ChannelSMTP)
	if err != nil {
		t.Fatalf("BuildSubscribers: %v", err)
	}
	f := newFixture(t, subs)

	prober := newScriptProber(map[string][]probe.Result{
		"white32": {probe.Available, probe.Unavailable},
		"blue64":  {probe.Unavailable},
	})
	f.run(t, prober, 100*time.Millisecond)

	if got := f.sink.count("a@x.com", "white32"); got != 1 {
		t.Fatalf("expected exactly 1 notification for white32, got %d", got)
	}
	if got := f.sink.count("a@x.com", "blue64"); got != 0 {
		t.Fatalf("expected no notification for blue64, got %d", got)
	}
	if got := f.events.Count("white32"); got != 1 {
		t.Fatalf("expected exactly 1 recorded event for white32, got %d", got)
	}
	if got := f.events.Count("blue64"); got != 0 {
		t.Fatalf("expected no events for blue64, got %d", got)
	}
}

func TestZeroIntervalSuppressesRepeats(t *testing.T) {
	subs, err := catalog.BuildSubscribers(map[string]*config.SubscriberConfig{
		"a@x.com": nil,
	}, catalog.ChannelSMTP)
	if err != nil {
		t.Fatalf("BuildSubscribers: %v", err)
	}
	f := newFixture(t, subs)

	// Item stays in stock across many polls.
	prober := newScriptProber(map[string][]probe.Result{
		"white32": {probe.Available},
	})
	f.run(t, prober, 100*time.Millisecond)

	if got := f.sink.count("a@x.com", "white32"); got != 1 {
		t.Fatalf("zero interval: expected 1 notification, got %d", got)
	}
	if got := f.events.Count("white32"); got < 2 {
		t.Fatalf("every available poll should record an event, got %d", got)
	}
}

func TestPositiveIntervalReNotifies(t *testing.T) {
	subs, err := catalog.BuildSubscribers(map[string]*config.SubscriberConfig{
		"a@x.com": {Interval: "30ms"},
	}, catalog.ChannelSMTP)
	if err != nil {
		t.Fatalf("BuildSubscribers: %v", err)
	}
	f := newFixture(t, subs)

	prober := newScriptProber(map[string][]probe.Result{
		"white32": {probe.Available},
	})
	f.run(t, prober, 200*time.Millisecond)

	got := f.sink.count("a@x.com", "white32")
	if got < 2 {
		t.Fatalf("expected re-notification after interval, got %d", got)
	}
	if got > 10 {
		t.Fatalf("interval not throttling: %d notifications in 200ms", got)
	}
}

func TestSubscriberFilterRespected(t *testing.T) {
	subs, err := catalog.BuildSubscribers(map[string]*config.SubscriberConfig{
		"blue@x.com": {Match: map[string]string{"color": "blue"}},
	}, catalog.ChannelSMTP)
	if err != nil {
		t.Fatalf("BuildSubscribers: %v", err)
	}
	f := newFixture(t, subs)

	prober := newScriptProber(map[string][]probe.Result{
		"white32": {probe.Available},
		"blue64":  {probe.Available, probe.Unavailable},
	})
	f.run(t, prober, 100*time.Millisecond)

	if got := f.sink.count("blue@x.com", "white32"); got != 0 {
		t.Fatalf("filtered-out item notified: %d", got)
	}
	if got := f.sink.count("blue@x.com", "blue64"); got != 1 {
		t.Fatalf("expected 1 notification for blue64, got %d", got)
	}
}

func TestExhaustedDeliveryDoesNotStopPolling(t *testing.T) {
	subs, err := catalog.BuildSubscribers(map[string]*config.SubscriberConfig{
		"a@x.com": nil,
	}, catalog.ChannelSMTP)
	if err != nil {
		t.Fatalf("BuildSubscribers: %v", err)
	}
	f := newFixture(t, subs)
	f.sink.fail = true

	failed := make(chan eventbus.Event, 1)
	ch, unsub := f.bus.Subscribe(16)
	defer unsub()
	go func() {
		for ev := range ch {
			if ev.Type == eventbus.TypeNotifyFailed {
				select {
				case failed <- ev:
				default:
				}
			}
		}
	}()

	prober := newScriptProber(map[string][]probe.Result{
		"white32": {probe.Available},
	})
	f.run(t, prober, 100*time.Millisecond)

	select {
	case ev := <-failed:
		if ev.ItemKey != "white32" || ev.Subscriber != "a@x.com" {
			t.Fatalf("unexpected failure event: %+v", ev)
		}
	default:
		t.Fatal("expected a notify.failed event")
	}

	// Polling continued after the exhausted delivery.
	if got := f.events.Count("white32"); got < 2 {
		t.Fatalf("poller appears stalled, only %d events", got)
	}
	// The throttle committed optimistically: no second delivery burst.
	if got := f.sink.count("a@x.com", "white32"); got != 0 {
		t.Fatalf("failing sink must have recorded no deliveries, got %d", got)
	}
}
