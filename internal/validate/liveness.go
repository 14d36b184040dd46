package validate

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/wohnwert/wohnwert/internal/resilience"
)

// HTTPChecker probes listing URLs with HEAD (falling back to GET), retried
// on transient failures, with a per-host circuit breaker so one dead
// portal cannot stall a whole batch.
type HTTPChecker struct {
	client  *http.Client
	retry   resilience.RetryConfig
	breaker *resilience.Breaker
}

// NewHTTPChecker creates a checker with the given request timeout.
func NewHTTPChecker(timeout time.Duration) *HTTPChecker {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPChecker{
		client:  &http.Client{Timeout: timeout},
		retry:   resilience.DefaultRetryConfig(),
		breaker: resilience.NewBreaker(5, 30*time.Second),
	}
}

// IsReachable reports whether the URL still serves the advert. Gone and
// not-found responses mean the listing was removed; transient server
// trouble is retried before giving up.
func (c *HTTPChecker) IsReachable(ctx context.Context, rawURL string) bool {
	if rawURL == "" {
		return false
	}
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return false
	}
	if !c.breaker.Allow(parsed.Host) {
		zap.L().Debug("validate: probe skipped, breaker open", zap.String("host", parsed.Host))
		return false
	}

	err = resilience.Do(ctx, c.retry, "url probe", func(ctx context.Context) error {
		return c.probe(ctx, rawURL)
	})
	if err != nil {
		c.breaker.Failure(parsed.Host)
		return false
	}
	c.breaker.Success(parsed.Host)
	return true
}

func (c *HTTPChecker) probe(ctx context.Context, rawURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return eris.Wrap(err, "validate: build probe request")
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return resilience.NewTransientError(err, 0)
	}
	resp.Body.Close()

	// Some portals reject HEAD outright; confirm with GET before
	// concluding anything from the status.
	if resp.StatusCode == http.StatusMethodNotAllowed {
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return eris.Wrap(err, "validate: build probe request")
		}
		resp, err = c.client.Do(req)
		if err != nil {
			return resilience.NewTransientError(err, 0)
		}
		resp.Body.Close()
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 400:
		return nil
	case resilience.IsTransientHTTPStatus(resp.StatusCode):
		return resilience.NewTransientError(eris.Errorf("status %d", resp.StatusCode), resp.StatusCode)
	default:
		return eris.Errorf("validate: probe status %d", resp.StatusCode)
	}
}
