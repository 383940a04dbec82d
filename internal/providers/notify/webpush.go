package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/GriffinCanCode/TextNexus/backend/internal/domain/notification"
	"github.com/SherClockHolmes/webpush-go"
	"github.com/bytedance/sonic"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
)

// SubscriptionsKey is where push subscriptions are persisted.
const SubscriptionsKey = "pushSubscriptions"

const defaultPushTTL = 60

var (
	// ErrInvalidSubscription is returned for subscriptions missing an
	// endpoint or keys.
	ErrInvalidSubscription = errors.New("notify: invalid push subscription")
	// ErrMissingVAPIDKeys is returned when the sink is built without keys.
	ErrMissingVAPIDKeys = errors.New("notify: VAPID keys required")
)

// Subscription is a browser push subscription.
type Subscription = webpush.Subscription

// WebPushConfig configures the Web Push sink.
type WebPushConfig struct {
	PublicKey  string
	PrivateKey string
	// Subscriber is the contact sent to push services (mailto: or URL).
	Subscriber string
	// TTL is how long push services keep undelivered messages, in seconds.
	TTL int
	// Retries is the number of retries on transient push service errors.
	Retries int
	// Client overrides the HTTP client.
	Client webpush.HTTPClient
}

// pushMessage is the payload the service worker receives.
type pushMessage struct {
	Type         string                     `json:"type"`
	Notification *notification.Notification `json:"notification,omitempty"`
	Close        *closeMessage              `json:"close,omitempty"`
}

// WebPush delivers notifications to subscribed browsers through their
// push services. Subscriptions that the push service reports as gone are
// removed.
type WebPush struct {
	cfg    WebPushConfig
	client webpush.HTTPClient
	store  Store
	logger *zap.Logger

	mu   sync.RWMutex
	subs map[string]Subscription
}

// NewWebPush creates the sink and restores persisted subscriptions. store
// may be nil.
func NewWebPush(ctx context.Context, cfg WebPushConfig, store Store, logger *zap.Logger) (*WebPush, error) {
	if cfg.PublicKey == "" || cfg.PrivateKey == "" {
		return nil, ErrMissingVAPIDKeys
	}
	if cfg.TTL <= 0 {
		cfg.TTL = defaultPushTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client := cfg.Client
	if client == nil {
		retryClient := retryablehttp.NewClient()
		retryClient.RetryMax = cfg.Retries
		retryClient.RetryWaitMin = 500 * time.Millisecond
		retryClient.RetryWaitMax = 10 * time.Second
		retryClient.Logger = nil
		client = retryClient.StandardClient()
	}

	w := &WebPush{
		cfg:    cfg,
		client: client,
		store:  store,
		logger: logger,
		subs:   make(map[string]Subscription),
	}

	if store != nil {
		var saved []Subscription
		if store.LoadInto(ctx, SubscriptionsKey, &saved) {
			for _, s := range saved {
				if validSubscription(s) == nil {
					w.subs[s.Endpoint] = s
				}
			}
		}
	}
	return w, nil
}

// Subscribe adds or replaces a subscription.
func (w *WebPush) Subscribe(ctx context.Context, sub Subscription) error {
	if err := validSubscription(sub); err != nil {
		return err
	}
	w.mu.Lock()
	w.subs[sub.Endpoint] = sub
	w.mu.Unlock()

	w.persist(ctx)
	w.logger.Info("Push subscription added", zap.String("endpoint", redactEndpoint(sub.Endpoint)))
	return nil
}

// Unsubscribe removes a subscription by endpoint.
func (w *WebPush) Unsubscribe(ctx context.Context, endpoint string) bool {
	w.mu.Lock()
	_, ok := w.subs[endpoint]
	delete(w.subs, endpoint)
	w.mu.Unlock()

	if ok {
		w.persist(ctx)
	}
	return ok
}

// Subscriptions lists subscriptions ordered by endpoint.
func (w *WebPush) Subscriptions() []Subscription {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]Subscription, 0, len(w.subs))
	for _, s := range w.subs {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Endpoint < out[j].Endpoint })
	return out
}

// PublicKey returns the VAPID application server key for clients.
func (w *WebPush) PublicKey() string {
	return w.cfg.PublicKey
}

// Show pushes the notification to every subscription. It succeeds when at
// least one push service accepted it.
func (w *WebPush) Show(ctx context.Context, n notification.Notification) (notification.Handle, error) {
	delivered, err := w.push(ctx, pushMessage{Type: "show", Notification: &n}, urgencyOf(n))
	if delivered == 0 {
		return nil, err
	}

	return &handle{
		id: n.ID,
		close: func() error {
			// Dismissal is best effort and must not block the caller for long
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			c := closeFor(n)
			_, err := w.push(ctx, pushMessage{Type: "close", Close: &c}, webpush.UrgencyLow)
			return err
		},
	}, nil
}

func (w *WebPush) push(ctx context.Context, msg pushMessage, urgency webpush.Urgency) (int, error) {
	subs := w.Subscriptions()
	if len(subs) == 0 {
		return 0, ErrNoReceivers
	}

	payload, err := sonic.Marshal(msg)
	if err != nil {
		return 0, fmt.Errorf("encode push message: %w", err)
	}

	var (
		delivered int
		errs      []error
		gone      []string
	)
	for i := range subs {
		sub := subs[i]
		status, err := w.send(ctx, payload, &sub, urgency)
		switch {
		case err != nil:
			errs = append(errs, err)
		case status == http.StatusNotFound || status == http.StatusGone:
			gone = append(gone, sub.Endpoint)
			errs = append(errs, fmt.Errorf("push subscription expired (%d)", status))
		case status >= 400:
			errs = append(errs, fmt.Errorf("push service returned %d", status))
		default:
			delivered++
		}
	}

	if len(gone) > 0 {
		w.mu.Lock()
		for _, endpoint := range gone {
			delete(w.subs, endpoint)
		}
		w.mu.Unlock()
		w.persist(ctx)
		w.logger.Info("Removed expired push subscriptions", zap.Int("count", len(gone)))
	}

	if len(errs) > 0 {
		w.logger.Debug("Push delivery errors",
			zap.String("type", msg.Type),
			zap.Int("delivered", delivered),
			zap.Error(errors.Join(errs...)),
		)
	}
	if delivered == 0 {
		return 0, errors.Join(errs...)
	}
	return delivered, nil
}

func (w *WebPush) send(ctx context.Context, payload []byte, sub *Subscription, urgency webpush.Urgency) (int, error) {
	resp, err := webpush.SendNotificationWithContext(ctx, payload, sub, &webpush.Options{
		HTTPClient:      w.client,
		Subscriber:      w.cfg.Subscriber,
		TTL:             w.cfg.TTL,
		Urgency:         urgency,
		VAPIDPublicKey:  w.cfg.PublicKey,
		VAPIDPrivateKey: w.cfg.PrivateKey,
	})
	if err != nil {
		return 0, fmt.Errorf("send push: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

func (w *WebPush) persist(ctx context.Context) {
	if w.store == nil {
		return
	}
	if !w.store.Save(ctx, SubscriptionsKey, w.Subscriptions()) {
		w.logger.Warn("Failed to persist push subscriptions")
	}
}

func validSubscription(s Subscription) error {
	u, err := url.Parse(s.Endpoint)
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return fmt.Errorf("%w: bad endpoint", ErrInvalidSubscription)
	}
	if s.Keys.Auth == "" || s.Keys.P256dh == "" {
		return fmt.Errorf("%w: missing keys", ErrInvalidSubscription)
	}
	return nil
}

func urgencyOf(n notification.Notification) webpush.Urgency {
	if n.Urgency == notification.UrgencyLow || n.Silent {
		return webpush.UrgencyLow
	}
	return webpush.UrgencyNormal
}

// redactEndpoint keeps logs free of the capability part of the endpoint.
func redactEndpoint(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "invalid"
	}
	return u.Scheme + "://" + u.Host
}
