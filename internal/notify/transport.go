// Package notify delivers selected listings to notification channels with
// exactly-once semantics per channel.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/wohnwert/wohnwert/internal/resilience"
)

// Transport pushes one rendered message to an external channel.
type Transport interface {
	Send(ctx context.Context, msg Message) error
}

// WebhookTransport POSTs messages as JSON to a configured endpoint, for
// example a Telegram bot bridge. Transient failures are retried with
// backoff before the send counts as failed.
type WebhookTransport struct {
	endpoint string
	client   *http.Client
	retry    resilience.RetryConfig
}

func NewWebhookTransport(endpoint string, timeout time.Duration) *WebhookTransport {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &WebhookTransport{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		retry:    resilience.DefaultRetryConfig(),
	}
}

func (t *WebhookTransport) Send(ctx context.Context, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return eris.Wrap(err, "notify: marshal message")
	}

	return resilience.Do(ctx, t.retry, "notify.send", func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
		if err != nil {
			return eris.Wrap(err, "notify: build request")
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := t.client.Do(req)
		if err != nil {
			return resilience.NewTransientError(err, 0)
		}
		defer func() {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		}()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil
		}
		err = eris.Errorf("notify: webhook returned %d", resp.StatusCode)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return resilience.NewTransientError(err, resp.StatusCode)
		}
		return err
	})
}

// LogTransport prints messages to stdout. It backs dry runs.
type LogTransport struct {
	Out io.Writer
}

func (t *LogTransport) Send(ctx context.Context, msg Message) error {
	out := t.Out
	if out == nil {
		return nil
	}
	_, err := fmt.Fprintf(out, "--- %s ---\n%s\n\n", msg.Channel, msg.Text)
	return eris.Wrap(err, "notify: write message")
}
