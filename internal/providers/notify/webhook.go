package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/GriffinCanCode/TextNexus/backend/internal/domain/notification"
	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
)

// webhookEvent is the JSON body posted to the webhook.
type webhookEvent struct {
	Event        string                     `json:"event"`
	Notification *notification.Notification `json:"notification,omitempty"`
	Close        *closeMessage              `json:"close,omitempty"`
	Timestamp    int64                      `json:"timestamp"`
}

// Webhook posts notifications as JSON to an HTTP endpoint, for relays such
// as ntfy or a home automation hub.
type Webhook struct {
	url    string
	client *resty.Client
	logger *zap.Logger
}

// NewWebhook creates a webhook sink posting to endpoint.
func NewWebhook(endpoint string, retries int, logger *zap.Logger) *Webhook {
	if logger == nil {
		logger = zap.NewNop()
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = retries
	retryClient.Logger = nil

	client := resty.New().
		SetTimeout(10*time.Second).
		SetRetryCount(retries).
		SetRetryWaitTime(500*time.Millisecond).
		SetRetryMaxWaitTime(5*time.Second).
		SetHeader("User-Agent", "TextNexus-Notify/1.0").
		SetHeader("Content-Type", "application/json")
	client.SetTransport(retryClient.HTTPClient.Transport)

	return &Webhook{url: endpoint, client: client, logger: logger}
}

func (w *Webhook) Show(ctx context.Context, n notification.Notification) (notification.Handle, error) {
	if err := w.post(ctx, webhookEvent{Event: EventShow, Notification: &n}); err != nil {
		return nil, err
	}
	return &handle{
		id: n.ID,
		close: func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			c := closeFor(n)
			return w.post(ctx, webhookEvent{Event: EventClose, Close: &c})
		},
	}, nil
}

func (w *Webhook) post(ctx context.Context, ev webhookEvent) error {
	ev.Timestamp = time.Now().Unix()
	resp, err := w.client.R().
		SetContext(ctx).
		SetBody(ev).
		Post(w.url)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("webhook returned %d", resp.StatusCode())
	}
	w.logger.Debug("Webhook delivered", zap.String("event", ev.Event))
	return nil
}
