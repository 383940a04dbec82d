package notification

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Action button labels, in display order.
const (
	ActionReply      = "Reply"
	ActionMarkAsRead = "Mark as Read"
)

// Action indexes reported by the platform.
const (
	ActionIndexReply      = 0
	ActionIndexMarkAsRead = 1
)

// ReplyPlaceholder is shown in the inline reply box.
const ReplyPlaceholder = "Type your reply..."

// Urgency hints how intrusive a notification should be.
type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyNormal Urgency = "normal"
)

// Button is a notification action.
type Button struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Notification is what the router asks a Notifier to display.
type Notification struct {
	ID               string   `json:"id"`
	Tag              string   `json:"tag,omitempty"`
	Title            string   `json:"title"`
	Body             string   `json:"body"`
	Icon             string   `json:"icon,omitempty"`
	Silent           bool     `json:"silent"`
	Urgency          Urgency  `json:"urgency,omitempty"`
	HasReply         bool     `json:"has_reply"`
	ReplyPlaceholder string   `json:"reply_placeholder,omitempty"`
	Actions          []Button `json:"actions,omitempty"`
}

// Handle is one displayed platform notification.
type Handle interface {
	ID() string
	Close() error
}

// Notifier displays platform notifications.
type Notifier interface {
	Show(ctx context.Context, n Notification) (Handle, error)
}

// UIEvents is the render surface the router drives.
type UIEvents interface {
	WindowRestore()
	SwitchToService(serviceID string)
	SendReply(serviceID, text string)
}

// ShowRequest is an activity signal for one service session.
type ShowRequest struct {
	ServiceID   string `json:"service_id" binding:"required"`
	ServiceName string `json:"service_name"`
	ServiceType string `json:"service_type"`
	Title       string `json:"title"`
	Body        string `json:"body"`
	Icon        string `json:"icon"`
}

// WindowEvent is a host window transition.
type WindowEvent string

const (
	WindowFocus WindowEvent = "focus"
	WindowBlur  WindowEvent = "blur"
	WindowShow  WindowEvent = "show"
	WindowHide  WindowEvent = "hide"
)

// ErrUnknownWindowEvent is returned for unrecognised transitions.
var ErrUnknownWindowEvent = errors.New("unknown window event")

// ParseWindowEvent validates a transition name.
func ParseWindowEvent(s string) (WindowEvent, error) {
	switch ev := WindowEvent(strings.ToLower(strings.TrimSpace(s))); ev {
	case WindowFocus, WindowBlur, WindowShow, WindowHide:
		return ev, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownWindowEvent, s)
	}
}
