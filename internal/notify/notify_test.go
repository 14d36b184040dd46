package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wohnwert/wohnwert/internal/feed"
	"github.com/wohnwert/wohnwert/internal/model"
	"github.com/wohnwert/wohnwert/internal/store"
)

func jsonDecode(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

type captureTransport struct {
	mu   sync.Mutex
	sent []Message
	fail bool
}

func (c *captureTransport) Send(ctx context.Context, msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return assert.AnError
	}
	c.sent = append(c.sent, msg)
	return nil
}

func seedListing(t *testing.T, s store.Store, url string, score float64) *model.Listing {
	t.Helper()
	l := &model.Listing{
		URL:          url,
		Title:        "Helle Altbauwohnung",
		District:     model.String("1040"),
		PriceTotal:   model.Float64(420000),
		AreaM2:       model.Float64(84),
		PricePerM2:   model.Float64(5000),
		Rooms:        model.Float64(3),
		Valid:        true,
		Score:        model.Float64(score),
		BuyerProfile: "default",
	}
	require.NoError(t, s.Upsert(context.Background(), l))
	return l
}

func TestFormatter_Render(t *testing.T) {
	f := NewFormatter()
	l := *seedListing(t, store.NewMemory(), "https://example.com/a", 61.5)

	msg := f.Render(l, model.ChannelMain)

	assert.Equal(t, model.ChannelMain, msg.Channel)
	assert.Equal(t, "https://example.com/a", msg.URL)
	assert.Equal(t, 61.5, msg.Score)
	assert.Contains(t, msg.Text, "Helle Altbauwohnung")
	assert.Contains(t, msg.Text, "Wieden")
	// de-AT grouping uses dots.
	assert.Contains(t, msg.Text, "420.000")
	assert.Contains(t, msg.Text, "61,5/100")
	assert.True(t, strings.HasSuffix(msg.Text, l.URL))
}

func TestFormatter_Render_MissingFieldsOmitted(t *testing.T) {
	f := NewFormatter()
	msg := f.Render(model.Listing{URL: "https://example.com/bare"}, model.ChannelDev)

	assert.Contains(t, msg.Text, "Wohnung")
	assert.NotContains(t, msg.Text, "€ 0")
	assert.NotContains(t, msg.Text, "0 m²")
}

func TestNotifier_Cycle_SendsAndClaims(t *testing.T) {
	mem := store.NewMemory()
	tr := &captureTransport{}
	n := NewNotifier(feed.NewSelector(mem), tr, 100)
	ctx := context.Background()

	seedListing(t, mem, "https://example.com/a", 70)
	seedListing(t, mem, "https://example.com/b", 60)

	res, err := n.Cycle(ctx, "default", feed.Filter{Channel: model.ChannelMain})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Selected)
	assert.Equal(t, 2, res.Sent)
	assert.Len(t, tr.sent, 2)
	assert.Equal(t, "https://example.com/a", tr.sent[0].URL)

	// Second cycle finds nothing undelivered.
	res2, err := n.Cycle(ctx, "default", feed.Filter{Channel: model.ChannelMain})
	require.NoError(t, err)
	assert.Equal(t, 0, res2.Selected)
	assert.Len(t, tr.sent, 2)
}

func TestNotifier_Cycle_ConcurrentCyclesConfirmOnce(t *testing.T) {
	mem := store.NewMemory()
	tr := &captureTransport{}
	ctx := context.Background()

	seedListing(t, mem, "https://example.com/a", 70)

	// All cycles see the listing (ResendAllowed bypasses the delivered
	// filter); the compare-and-set lets exactly one confirm.
	var wg sync.WaitGroup
	results := make([]*CycleResult, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			n := NewNotifier(feed.NewSelector(mem), tr, 100)
			res, err := n.Cycle(ctx, "default", feed.Filter{Channel: model.ChannelMain, ResendAllowed: true})
			assert.NoError(t, err)
			results[i] = res
		}(i)
	}
	wg.Wait()

	totalConfirmed := 0
	totalSkipped := 0
	for _, r := range results {
		totalConfirmed += r.Sent
		totalSkipped += r.Skipped
	}
	assert.Equal(t, 1, totalConfirmed)
	assert.Equal(t, 3, totalSkipped)
}

func TestNotifier_Cycle_RequiresChannel(t *testing.T) {
	n := NewNotifier(feed.NewSelector(store.NewMemory()), &captureTransport{}, 1)
	_, err := n.Cycle(context.Background(), "default", feed.Filter{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "without channel")
}

func TestNotifier_Digest_ReopensAndSummarizes(t *testing.T) {
	mem := store.NewMemory()
	tr := &captureTransport{}
	sel := feed.NewSelector(mem)
	n := NewNotifier(sel, tr, 100)
	ctx := context.Background()

	a := seedListing(t, mem, "https://example.com/a", 70)
	seedListing(t, mem, "https://example.com/b", 60)
	require.NoError(t, sel.MarkDelivered(ctx, a.URL, model.ChannelDigest))

	// Zero resend window reopens the existing flag immediately.
	res, err := n.Digest(ctx, mem, "default", feed.Filter{Channel: model.ChannelDigest}, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Selected)
	assert.Equal(t, 2, res.Sent)

	require.Len(t, tr.sent, 1)
	assert.Contains(t, tr.sent[0].Text, "2 Wohnungen")
	assert.Contains(t, tr.sent[0].Text, "https://example.com/a")
	assert.Contains(t, tr.sent[0].Text, "https://example.com/b")
}

func TestWebhookTransport_Send(t *testing.T) {
	var got Message
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, jsonDecode(r, &got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tr := NewWebhookTransport(srv.URL, 5*time.Second)
	err := tr.Send(context.Background(), Message{Channel: model.ChannelMain, URL: "https://example.com/a", Text: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/a", got.URL)
}

func TestWebhookTransport_Send_RetriesTransient(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tr := NewWebhookTransport(srv.URL, 5*time.Second)
	tr.retry.InitialBackoff = time.Millisecond
	err := tr.Send(context.Background(), Message{Text: "hi"})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestWebhookTransport_Send_PermanentFailure(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	tr := NewWebhookTransport(srv.URL, 5*time.Second)
	err := tr.Send(context.Background(), Message{Text: "hi"})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}
