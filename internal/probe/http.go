package probe

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"time"

	"golang.org/x/time/rate"

	"stockwatch/internal/catalog"
	"stockwatch/internal/config"
	logx "stockwatch/pkg/logx"
)

const (
	defaultTimeout      = 5 * time.Second
	defaultMinBodyBytes = 2048

	// maxBodyBytes bounds how much of a response we are willing to scan.
	maxBodyBytes = 4 << 20
)

// HTTPProber fetches the item URL and classifies the response:
//   - transport error or non-200 status: indeterminate
//   - out-of-stock pattern found in the body: unavailable
//   - body shorter than the configured minimum: indeterminate
//     (truncated or interstitial pages look like this)
//   - otherwise: available
type HTTPProber struct {
	client  *http.Client
	timeout time.Duration
	limiter *rate.Limiter
	pattern *regexp.Regexp
	minBody int
	log     logx.Logger
}

func NewHTTP(cfg config.ProbeConfig, log logx.Logger) (*HTTPProber, error) {
	timeout, err := config.ParseDurationOrDefault("probe.timeout", cfg.Timeout, defaultTimeout)
	if err != nil {
		return nil, err
	}

	var pattern *regexp.Regexp
	if cfg.OutOfStockPattern != "" {
		pattern, err = regexp.Compile(cfg.OutOfStockPattern)
		if err != nil {
			return nil, fmt.Errorf("probe.out_of_stock_pattern: %w", err)
		}
	}

	minBody := cfg.MinBodyBytes
	if minBody <= 0 {
		minBody = defaultMinBodyBytes
	}

	var limiter *rate.Limiter
	if cfg.RatePerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
	}

	return &HTTPProber{
		client:  &http.Client{},
		timeout: timeout,
		limiter: limiter,
		pattern: pattern,
		minBody: minBody,
		log:     log,
	}, nil
}

func (p *HTTPProber) Probe(ctx context.Context, item *catalog.Item) (Result, error) {
	// The rate limit is shared across all pollers; wait before the
	// per-request timeout starts ticking.
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return Indeterminate, err
		}
	}

	reqCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, item.URL, nil)
	if err != nil {
		return Indeterminate, err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return Indeterminate, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Indeterminate, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return Indeterminate, err
	}

	if p.pattern != nil && p.pattern.Match(body) {
		p.log.Debug("out of stock", logx.String("item", item.Key))
		return Unavailable, nil
	}

	if len(body) < p.minBody {
		p.log.Warn("response smaller than expected",
			logx.String("item", item.Key), logx.Int("bytes", len(body)))
		return Indeterminate, nil
	}

	return Available, nil
}
