package notify

import (
	"context"

	"github.com/GriffinCanCode/TextNexus/backend/internal/domain/notification"
	"go.uber.org/zap"
)

// Broadcaster delivers an event to every connected render client and
// reports how many received it.
type Broadcaster interface {
	Broadcast(event string, payload any) int
}

// UI shows notifications in the connected render clients and relays the
// router's UI events to them.
type UI struct {
	out    Broadcaster
	logger *zap.Logger
}

// NewUI creates a UI sink.
func NewUI(out Broadcaster, logger *zap.Logger) *UI {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UI{out: out, logger: logger}
}

// Show broadcasts the notification. It fails when no client is connected.
func (u *UI) Show(_ context.Context, n notification.Notification) (notification.Handle, error) {
	if u.out.Broadcast(EventShow, n) == 0 {
		return nil, ErrNoReceivers
	}
	return &handle{
		id: n.ID,
		close: func() error {
			u.out.Broadcast(EventClose, closeFor(n))
			return nil
		},
	}, nil
}

// WindowRestore asks the shell to show and focus its window.
func (u *UI) WindowRestore() {
	u.send(EventWindowRestore, struct{}{})
}

// SwitchToService asks the UI to select a service.
func (u *UI) SwitchToService(serviceID string) {
	u.send(EventSwitchToService, map[string]string{"serviceId": serviceID})
}

// SendReply forwards reply text to a service session.
func (u *UI) SendReply(serviceID, text string) {
	u.send(EventSendReply, map[string]string{"serviceId": serviceID, "text": text})
}

func (u *UI) send(event string, payload any) {
	if n := u.out.Broadcast(event, payload); n == 0 {
		u.logger.Debug("UI event dropped, no clients", zap.String("event", event))
	}
}
