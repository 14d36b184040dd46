package notify

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/wohnwert/wohnwert/internal/feed"
	"github.com/wohnwert/wohnwert/internal/model"
	"github.com/wohnwert/wohnwert/internal/store"
)

// CycleResult counts what one notification cycle did.
type CycleResult struct {
	Selected int `json:"selected"`
	Sent     int `json:"sent"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
}

// Notifier runs notification cycles: select the top candidates, send, and
// mark delivered only on confirmed success. The mark is a compare-and-set
// in the store, so when concurrent cycles race on the same channel exactly
// one send counts as confirmed. A failed send is never marked and the
// listing stays eligible for the next cycle.
type Notifier struct {
	selector  *feed.Selector
	formatter *Formatter
	transport Transport
	limiter   *rate.Limiter
}

// NewNotifier wires a notifier. messagesPerSecond throttles outbound
// sends; Telegram bots tolerate about one message per second per chat.
func NewNotifier(sel *feed.Selector, tr Transport, messagesPerSecond float64) *Notifier {
	if messagesPerSecond <= 0 {
		messagesPerSecond = 1
	}
	return &Notifier{
		selector:  sel,
		formatter: NewFormatter(),
		transport: tr,
		limiter:   rate.NewLimiter(rate.Limit(messagesPerSecond), 1),
	}
}

// Cycle selects and delivers candidates for one profile and channel.
func (n *Notifier) Cycle(ctx context.Context, profile string, f feed.Filter) (*CycleResult, error) {
	if f.Channel == "" {
		return nil, eris.New("notify: cycle without channel")
	}

	listings, err := n.selector.Select(ctx, profile, f)
	if err != nil {
		return nil, eris.Wrap(err, "notify: select")
	}

	res := &CycleResult{Selected: len(listings)}
	log := zap.L().With(zap.String("profile", profile), zap.String("channel", string(f.Channel)))

	for _, l := range listings {
		if err := n.deliver(ctx, l, f.Channel); err != nil {
			switch {
			case eris.Is(err, store.ErrAlreadyDelivered):
				res.Skipped++
			case eris.Is(err, context.Canceled), eris.Is(err, context.DeadlineExceeded):
				return res, eris.Wrap(err, "notify: cycle interrupted")
			default:
				res.Failed++
				log.Warn("delivery failed", zap.String("url", l.URL), zap.Error(err))
			}
			continue
		}
		res.Sent++
	}

	log.Info("notification cycle finished",
		zap.Int("selected", res.Selected),
		zap.Int("sent", res.Sent),
		zap.Int("skipped", res.Skipped),
		zap.Int("failed", res.Failed))
	return res, nil
}

func (n *Notifier) deliver(ctx context.Context, l model.Listing, ch model.Channel) error {
	if err := n.limiter.Wait(ctx); err != nil {
		return eris.Wrap(err, "notify: rate limit wait")
	}
	if err := n.transport.Send(ctx, n.formatter.Render(l, ch)); err != nil {
		return err
	}
	// Confirm only after the transport succeeded. Losing the
	// compare-and-set means another cycle's send was confirmed first.
	return n.selector.MarkDelivered(ctx, l.URL, ch)
}

// Digest sends one combined summary for the channel instead of individual
// messages, after reopening delivery flags older than the resend window.
func (n *Notifier) Digest(ctx context.Context, s store.Store, profile string, f feed.Filter, resendAfter time.Duration) (*CycleResult, error) {
	if f.Channel == "" {
		return nil, eris.New("notify: digest without channel")
	}

	cutoff := time.Now().UTC().Add(-resendAfter)
	reopened, err := s.ResetDeliveries(ctx, f.Channel, cutoff)
	if err != nil {
		return nil, eris.Wrap(err, "notify: reset deliveries")
	}
	zap.L().Info("digest reopened deliveries",
		zap.String("channel", string(f.Channel)),
		zap.Int64("reopened", reopened))

	listings, err := n.selector.Select(ctx, profile, f)
	if err != nil {
		return nil, eris.Wrap(err, "notify: select digest")
	}

	res := &CycleResult{Selected: len(listings)}
	if len(listings) == 0 {
		return res, nil
	}

	if err := n.limiter.Wait(ctx); err != nil {
		return res, eris.Wrap(err, "notify: rate limit wait")
	}
	if err := n.transport.Send(ctx, n.formatter.RenderDigest(listings, f.Channel)); err != nil {
		res.Failed = len(listings)
		return res, eris.Wrap(err, "notify: send digest")
	}

	for _, l := range listings {
		if err := n.selector.MarkDelivered(ctx, l.URL, f.Channel); err != nil {
			if eris.Is(err, store.ErrAlreadyDelivered) {
				res.Skipped++
				continue
			}
			return res, eris.Wrap(err, "notify: confirm digest entry")
		}
		res.Sent++
	}
	return res, nil
}
