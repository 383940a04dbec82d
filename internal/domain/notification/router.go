package notification

import (
	"context"
	"html"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/GriffinCanCode/TextNexus/backend/internal/infrastructure/monitoring"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"
)

const (
	replySentBody  = "Reply sent successfully!"
	backgroundBody = "App is running in the background. You will continue to receive notifications."
	defaultAppName = "TextNexus"
	defaultRestore = 500 * time.Millisecond
	defaultConfirm = 2 * time.Second
)

// Config tunes the router.
type Config struct {
	// AppName replaces a missing service name in titles.
	AppName string
	// DefaultIcon is used when neither the icon table nor the request has one.
	DefaultIcon string
	// Icons maps service types to icons.
	Icons map[string]string
	// RestoreDelay separates window-restore from switch-to-service on click.
	RestoreDelay time.Duration
	// ConfirmTTL is how long the reply confirmation stays up.
	ConfirmTTL time.Duration
	// BackgroundNotice shows a one-off notice when the window is hidden.
	BackgroundNotice bool
}

func (c Config) withDefaults() Config {
	if c.AppName == "" {
		c.AppName = defaultAppName
	}
	if c.RestoreDelay <= 0 {
		c.RestoreDelay = defaultRestore
	}
	if c.ConfirmTTL <= 0 {
		c.ConfirmTTL = defaultConfirm
	}
	return c
}

type tracked struct {
	handle      Handle
	serviceName string
	icon        string
}

// Router turns activity signals into platform notifications while the
// window is not visible, and routes clicks and replies back to the UI.
// Each service has at most one tracked notification.
type Router struct {
	cfg      Config
	notifier Notifier
	ui       UIEvents
	policy   *bluemonday.Policy
	logger   *zap.Logger
	metrics  *monitoring.Metrics

	mu      sync.Mutex
	visible bool
	handles map[string]tracked
	muted   map[string]bool
	timers  map[*time.Timer]struct{}
	closed  bool
}

// NewRouter creates a router. The window starts out visible.
func NewRouter(notifier Notifier, ui UIEvents, cfg Config, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		cfg:      cfg.withDefaults(),
		notifier: notifier,
		ui:       ui,
		policy:   bluemonday.StrictPolicy(),
		logger:   logger,
		visible:  true,
		handles:  make(map[string]tracked),
		muted:    make(map[string]bool),
		timers:   make(map[*time.Timer]struct{}),
	}
}

// WithMetrics adds metrics tracking to the router
func (r *Router) WithMetrics(metrics *monitoring.Metrics) *Router {
	r.metrics = metrics
	return r
}

// Show displays a notification for req.ServiceID. It returns false without
// creating anything while the window is visible, when the service is muted,
// or when the notifier fails. A notification that lands after the window
// became visible or the service was muted is closed again.
func (r *Router) Show(ctx context.Context, req ShowRequest) bool {
	if req.ServiceID == "" {
		r.metrics.RecordNotification("show", monitoring.StatusError)
		return false
	}

	r.mu.Lock()
	visible, muted, closed := r.visible, r.muted[req.ServiceID], r.closed
	r.mu.Unlock()
	if visible || muted || closed {
		r.metrics.RecordNotification("show", monitoring.StatusSkipped)
		return false
	}

	n := r.build(req)
	handle, err := r.notifier.Show(ctx, n)
	if err != nil {
		r.metrics.RecordNotification("show", monitoring.StatusError)
		r.logger.Error("Failed to show notification",
			zap.String("service_id", req.ServiceID),
			zap.Error(err),
		)
		return false
	}

	r.mu.Lock()
	// The window may have been shown, the service muted or the router
	// closed while the notifier was busy
	if r.visible || r.muted[req.ServiceID] || r.closed {
		r.mu.Unlock()
		r.close(req.ServiceID, handle)
		r.metrics.RecordNotification("show", monitoring.StatusSkipped)
		return false
	}
	// A superseded handle is dropped from tracking but left on screen
	r.handles[req.ServiceID] = tracked{handle: handle, serviceName: req.ServiceName, icon: n.Icon}
	count := len(r.handles)
	r.mu.Unlock()

	r.metrics.RecordNotification("show", monitoring.StatusSuccess)
	r.metrics.SetNotificationsTracked(count)
	r.logger.Debug("Notification shown",
		zap.String("service_id", req.ServiceID),
		zap.String("notification_id", n.ID),
	)
	return true
}

func (r *Router) build(req ShowRequest) Notification {
	name := r.plain(req.ServiceName)
	if name == "" {
		name = r.cfg.AppName
	}
	title := name
	if t := r.plain(req.Title); t != "" {
		title = name + " - " + t
	}

	return Notification{
		ID:               uuid.NewString(),
		Tag:              req.ServiceID,
		Title:            title,
		Body:             r.plain(req.Body),
		Icon:             r.resolveIcon(req),
		Urgency:          UrgencyNormal,
		HasReply:         true,
		ReplyPlaceholder: ReplyPlaceholder,
		Actions: []Button{
			{Type: "button", Text: ActionReply},
			{Type: "button", Text: ActionMarkAsRead},
		},
	}
}

func (r *Router) resolveIcon(req ShowRequest) string {
	if icon, ok := r.cfg.Icons[strings.ToLower(req.ServiceType)]; ok && icon != "" {
		return icon
	}
	if req.Icon != "" {
		return req.Icon
	}
	return r.cfg.DefaultIcon
}

// plain strips markup and returns readable text.
func (r *Router) plain(s string) string {
	return strings.TrimSpace(html.UnescapeString(r.policy.Sanitize(s)))
}

// Click restores the window, forgets the notification and, after the
// restore delay, switches the UI to the service.
func (r *Router) Click(serviceID string) {
	r.ui.WindowRestore()
	r.forget(serviceID)
	r.metrics.RecordNotification("click", monitoring.StatusSuccess)

	r.after(r.cfg.RestoreDelay, func() {
		r.ui.SwitchToService(serviceID)
	})
}

// Reply forwards text to the service session and shows a short-lived
// confirmation. Delivery is not acknowledged. The original notification
// is forgotten but not closed.
func (r *Router) Reply(ctx context.Context, serviceID, text string) {
	r.mu.Lock()
	t, ok := r.handles[serviceID]
	r.mu.Unlock()

	r.ui.SendReply(serviceID, text)
	r.forget(serviceID)
	r.metrics.RecordNotification("reply", monitoring.StatusSuccess)

	name := t.serviceName
	if name == "" {
		name = r.cfg.AppName
	}
	icon := t.icon
	if !ok {
		icon = r.cfg.DefaultIcon
	}

	confirm, err := r.notifier.Show(ctx, Notification{
		ID:     uuid.NewString(),
		Tag:    serviceID,
		Title:  name + " - Reply Sent",
		Body:   replySentBody,
		Icon:   icon,
		Silent: true,
	})
	if err != nil {
		r.logger.Warn("Failed to show reply confirmation",
			zap.String("service_id", serviceID),
			zap.Error(err),
		)
		return
	}

	r.after(r.cfg.ConfirmTTL, func() {
		if err := confirm.Close(); err != nil {
			r.logger.Debug("Failed to close confirmation", zap.Error(err))
		}
	})
}

// Action handles a button press. Reply opens the inline reply box on the
// platform side, so only Mark as Read does anything here.
func (r *Router) Action(serviceID string, index int) {
	switch index {
	case ActionIndexReply:
	case ActionIndexMarkAsRead:
		r.Clear(serviceID)
		r.metrics.RecordNotification("mark_read", monitoring.StatusSuccess)
	default:
		r.logger.Debug("Ignoring unknown notification action",
			zap.String("service_id", serviceID),
			zap.Int("index", index),
		)
	}
}

// Clear closes and forgets the notification for one service.
func (r *Router) Clear(serviceID string) {
	r.mu.Lock()
	t, ok := r.handles[serviceID]
	delete(r.handles, serviceID)
	count := len(r.handles)
	r.mu.Unlock()

	if !ok {
		return
	}
	r.metrics.SetNotificationsTracked(count)
	r.close(serviceID, t.handle)
}

// ClearAll closes and forgets every tracked notification.
func (r *Router) ClearAll() {
	r.mu.Lock()
	handles := r.handles
	r.handles = make(map[string]tracked)
	r.mu.Unlock()

	r.metrics.SetNotificationsTracked(0)
	for id, t := range handles {
		r.close(id, t.handle)
	}
}

// WindowEvent applies a host window transition. Focus and show make the
// app visible and clear everything; blur and hide re-enable notifications
// without touching existing ones.
func (r *Router) WindowEvent(ctx context.Context, ev WindowEvent) error {
	switch ev {
	case WindowFocus, WindowShow:
		r.setVisible(true)
		r.ClearAll()
	case WindowBlur:
		r.setVisible(false)
	case WindowHide:
		wasVisible := r.setVisible(false)
		if wasVisible && r.cfg.BackgroundNotice {
			r.backgroundNotice(ctx)
		}
	default:
		return ErrUnknownWindowEvent
	}
	r.logger.Debug("Window event", zap.String("event", string(ev)))
	return nil
}

func (r *Router) backgroundNotice(ctx context.Context) {
	_, err := r.notifier.Show(ctx, Notification{
		ID:    uuid.NewString(),
		Title: r.cfg.AppName,
		Body:  backgroundBody,
		Icon:  r.cfg.DefaultIcon,
	})
	if err != nil {
		r.logger.Warn("Failed to show background notice", zap.Error(err))
	}
}

// setVisible stores v and returns the previous value.
func (r *Router) setVisible(v bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev := r.visible
	r.visible = v
	return prev
}

// Visible reports whether notifications are currently suppressed.
func (r *Router) Visible() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.visible
}

// SetMuted enables or disables notifications for one service.
func (r *Router) SetMuted(serviceID string, muted bool) {
	r.mu.Lock()
	if muted {
		r.muted[serviceID] = true
	} else {
		delete(r.muted, serviceID)
	}
	r.mu.Unlock()

	if muted {
		r.Clear(serviceID)
	}
}

// Muted reports whether a service is muted.
func (r *Router) Muted(serviceID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.muted[serviceID]
}

// Tracked lists the services with a live notification.
func (r *Router) Tracked() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.handles))
	for id := range r.handles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Handle returns the tracked notification for a service.
func (r *Router) Handle(serviceID string) (Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.handles[serviceID]
	return t.handle, ok
}

// Consume shows every request from signals until ctx is done or the
// channel is closed.
func (r *Router) Consume(ctx context.Context, signals <-chan ShowRequest) {
	for {
		select {
		case <-ctx.Done():
			return
		case req, ok := <-signals:
			if !ok {
				return
			}
			r.Show(ctx, req)
		}
	}
}

// Close stops pending timers. Tracked notifications are left alone.
func (r *Router) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	for t := range r.timers {
		t.Stop()
	}
	r.timers = make(map[*time.Timer]struct{})
}

func (r *Router) forget(serviceID string) {
	r.mu.Lock()
	delete(r.handles, serviceID)
	count := len(r.handles)
	r.mu.Unlock()
	r.metrics.SetNotificationsTracked(count)
}

func (r *Router) close(serviceID string, h Handle) {
	if h == nil {
		return
	}
	if err := h.Close(); err != nil {
		r.logger.Warn("Failed to close notification",
			zap.String("service_id", serviceID),
			zap.Error(err),
		)
	}
}

// after runs fn once d has elapsed unless the router is closed first.
func (r *Router) after(d time.Duration, fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}

	var t *time.Timer
	t = time.AfterFunc(d, func() {
		r.mu.Lock()
		_, live := r.timers[t]
		delete(r.timers, t)
		r.mu.Unlock()
		if live {
			fn()
		}
	})
	r.timers[t] = struct{}{}
}
