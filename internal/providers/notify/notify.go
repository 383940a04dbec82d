package notify

import (
	"context"
	"errors"
	"sync"

	"github.com/GriffinCanCode/TextNexus/backend/internal/domain/notification"
)

// UI event names broadcast to render clients.
const (
	EventShow            = "notification.show"
	EventClose           = "notification.close"
	EventWindowRestore   = "window-restore"
	EventSwitchToService = "switch-to-service"
	EventSendReply       = "send-reply"

	EventStoreChanged         = "store.changed"
	EventServiceReload        = "service.reload"
	EventServiceToggle        = "service.toggle"
	EventServiceNotifications = "service.notifications"
)

// ErrNoReceivers is returned when a notification reached nobody.
var ErrNoReceivers = errors.New("notify: no receivers")

// Store persists sink state such as push subscriptions.
type Store interface {
	Save(ctx context.Context, key string, value any) bool
	LoadInto(ctx context.Context, key string, out any) bool
}

// closeMessage tells a receiver to dismiss a notification.
type closeMessage struct {
	ID  string `json:"id"`
	Tag string `json:"tag"`
}

func closeFor(n notification.Notification) closeMessage {
	return closeMessage{ID: n.ID, Tag: n.Tag}
}

// handle is a notification that is closed at most once.
type handle struct {
	id    string
	close func() error
	once  sync.Once
	err   error
}

func (h *handle) ID() string { return h.id }

func (h *handle) Close() error {
	h.once.Do(func() { h.err = h.close() })
	return h.err
}
