// Package metrics exposes watcher counters over Prometheus. It feeds
// off the event bus so the engine never depends on the exporter.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"stockwatch/internal/eventbus"
	logx "stockwatch/pkg/logx"
)

const defaultAddr = "127.0.0.1:9091"

type Service struct {
	addr string
	log  logx.Logger

	reg    *prometheus.Registry
	server *http.Server

	pollsTotal        *prometheus.CounterVec
	availableTotal    *prometheus.CounterVec
	notifySentTotal   *prometheus.CounterVec
	notifyFailedTotal *prometheus.CounterVec
	checkpointsTotal  *prometheus.CounterVec
}

func New(addr string, log logx.Logger) *Service {
	if addr == "" {
		addr = defaultAddr
	}
	s := &Service{addr: addr, log: log, reg: prometheus.NewRegistry()}

	s.pollsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stockwatch",
		Name:      "polls_total",
		Help:      "Probe results per item",
	}, []string{"item", "result"})
	s.availableTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stockwatch",
		Name:      "available_total",
		Help:      "Observed availability events per item",
	}, []string{"item"})
	s.notifySentTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stockwatch",
		Name:      "notifications_sent_total",
		Help:      "Delivered notifications per channel",
	}, []string{"channel"})
	s.notifyFailedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stockwatch",
		Name:      "notifications_failed_total",
		Help:      "Notifications that exhausted their delivery attempts",
	}, []string{"channel"})
	s.checkpointsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stockwatch",
		Name:      "checkpoints_total",
		Help:      "Checkpoint attempts by status",
	}, []string{"status"})

	s.reg.MustRegister(
		s.pollsTotal, s.availableTotal,
		s.notifySentTotal, s.notifyFailedTotal,
		s.checkpointsTotal,
	)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(s.reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	s.server = &http.Server{
		Addr:        addr,
		Handler:     mux,
		ReadTimeout: 5 * time.Second,
		IdleTimeout: 60 * time.Second,
	}
	return s
}

// ObservePoll records a probe result; called directly by the pollers
// since poll outcomes are not bus events.
func (s *Service) ObservePoll(itemKey, result string) {
	s.pollsTotal.WithLabelValues(itemKey, result).Inc()
}

// Run consumes bus events and serves /metrics until ctx is done.
func (s *Service) Run(ctx context.Context, bus eventbus.Bus) error {
	ch, unsub := bus.Subscribe(64)
	defer unsub()

	errCh := make(chan error, 1)
	go func() {
		err := s.server.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	s.log.Info("metrics listening", logx.String("addr", s.addr))

	for {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			err := s.server.Shutdown(shutdownCtx)
			cancel()
			return err
		case err := <-errCh:
			return err
		case ev, ok := <-ch:
			if !ok {
				return nil
			}
			s.observe(ev)
		}
	}
}

func (s *Service) observe(ev eventbus.Event) {
	switch ev.Type {
	case eventbus.TypeItemAvailable:
		s.availableTotal.WithLabelValues(ev.ItemKey).Inc()
	case eventbus.TypeNotifySent:
		s.notifySentTotal.WithLabelValues(ev.Channel).Inc()
	case eventbus.TypeNotifyFailed:
		s.notifyFailedTotal.WithLabelValues(ev.Channel).Inc()
	case eventbus.TypeCheckpointSaved:
		s.checkpointsTotal.WithLabelValues("ok").Inc()
	case eventbus.TypeCheckpointFailed:
		s.checkpointsTotal.WithLabelValues("error").Inc()
	}
}
