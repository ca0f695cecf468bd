// Package notify posts plain-text alerts to an ntfy-style webhook.
package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const alertTitle = "REP+ scan alert"

// Webhook delivers messages to a fixed endpoint.
type Webhook struct {
	client   *http.Client
	endpoint string
}

// NewWebhook returns a Webhook posting to endpoint. A nil client uses
// http.DefaultClient.
func NewWebhook(client *http.Client, endpoint string) *Webhook {
	return &Webhook{client: client, endpoint: endpoint}
}

// Notify sends message with the scan alert title.
func (w *Webhook) Notify(ctx context.Context, message string) error {
	return Send(ctx, w.client, w.endpoint, alertTitle, message)
}

// Send posts message to endpoint. title is passed in the ntfy Title header
// when non-empty.
func Send(ctx context.Context, client *http.Client, endpoint, title, message string) error {
	if strings.TrimSpace(endpoint) == "" {
		return errors.New("notify endpoint is required")
	}
	c := client
	if c == nil {
		c = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(message))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "text/plain")
	if title != "" {
		req.Header.Set("Title", title)
	}

	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("ntfy notification failed: status=%d", resp.StatusCode)
	}
	return nil
}
