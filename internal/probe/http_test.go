package probe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"stockwatch/internal/catalog"
	"stockwatch/internal/config"
	logx "stockwatch/pkg/logx"
)

func newProber(t *testing.T, cfg config.ProbeConfig) *HTTPProber {
	t.Helper()
	p, err := NewHTTP(cfg, logx.Nop())
	if err != nil {
		t.Fatalf("NewHTTP: %v", err)
	}
	return p
}

func TestHTTPProbeClassification(t *testing.T) {
	bigBody := strings.Repeat("x", 4096)

	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    Result
		wantErr bool
	}{
		{
			name: "available",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(bigBody))
			},
			want: Available,
		},
		{
			name: "out of stock marker",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(bigBody + "We are out of inventory" + bigBody))
			},
			want: Unavailable,
		},
		{
			name: "non-200 status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusServiceUnavailable)
			},
			want:    Indeterminate,
			wantErr: true,
		},
		{
			name: "suspiciously small body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte("tiny"))
			},
			want: Indeterminate,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			p := newProber(t, config.ProbeConfig{
				OutOfStockPattern: "We are out of inventory",
			})
			item := &catalog.Item{Key: "white32", URL: srv.URL}

			got, err := p.Probe(context.Background(), item)
			if got != tt.want {
				t.Fatalf("result = %s, want %s", got, tt.want)
			}
			if tt.wantErr && err == nil {
				t.Fatal("expected an error")
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestHTTPProbeTimeout(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	p := newProber(t, config.ProbeConfig{Timeout: "50ms"})
	item := &catalog.Item{Key: "slow", URL: srv.URL}

	start := time.Now()
	got, err := p.Probe(context.Background(), item)
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if got != Indeterminate {
		t.Fatalf("result = %s, want indeterminate", got)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("timeout not enforced, took %s", elapsed)
	}
}

func TestHTTPProbeBadPattern(t *testing.T) {
	if _, err := NewHTTP(config.ProbeConfig{OutOfStockPattern: "("}, logx.Nop()); err == nil {
		t.Fatal("expected error for invalid pattern")
	}
}

func TestStaticProbe(t *testing.T) {
	got, err := Static{Result: Available}.Probe(context.Background(), &catalog.Item{Key: "x"})
	if err != nil || got != Available {
		t.Fatalf("got (%s, %v)", got, err)
	}
}
