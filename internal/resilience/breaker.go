package resilience

import (
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ErrBreakerOpen is returned when a call is rejected without being tried.
var ErrBreakerOpen = eris.New("breaker open")

// Breaker is a per-host circuit breaker for the URL liveness probe. It
// trips after consecutive failures and lets a probe through again once the
// cooldown has passed.
type Breaker struct {
	mu        sync.Mutex
	threshold int
	cooldown  time.Duration

	failures map[string]int
	openedAt map[string]time.Time
}

// NewBreaker creates a breaker tripping after threshold consecutive
// failures, staying open for cooldown.
func NewBreaker(threshold int, cooldown time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = 5
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &Breaker{
		threshold: threshold,
		cooldown:  cooldown,
		failures:  make(map[string]int),
		openedAt:  make(map[string]time.Time),
	}
}

// Allow reports whether a probe against host may proceed.
func (b *Breaker) Allow(host string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	opened, open := b.openedAt[host]
	if !open {
		return true
	}
	if time.Since(opened) >= b.cooldown {
		// Half-open: allow one probe, count again from the threshold edge.
		delete(b.openedAt, host)
		b.failures[host] = b.threshold - 1
		return true
	}
	return false
}

// Success resets the failure count for host.
func (b *Breaker) Success(host string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.failures, host)
	delete(b.openedAt, host)
}

// Failure records a failed probe, tripping the breaker at the threshold.
func (b *Breaker) Failure(host string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures[host]++
	if b.failures[host] >= b.threshold {
		if _, open := b.openedAt[host]; !open {
			b.openedAt[host] = time.Now()
			zap.L().Warn("resilience: breaker opened",
				zap.String("host", host),
				zap.Int("failures", b.failures[host]),
			)
		}
	}
}
