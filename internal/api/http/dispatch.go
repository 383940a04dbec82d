package http

import (
	"context"
	"errors"
	"fmt"

	"github.com/GriffinCanCode/TextNexus/backend/internal/domain/notification"
	"github.com/GriffinCanCode/TextNexus/backend/internal/shared/utils"
	"github.com/bytedance/sonic"
)

// Inbound websocket message types.
const (
	MsgWindow             = "window"
	MsgNotificationClick  = "notification_click"
	MsgNotificationReply  = "notification_reply"
	MsgNotificationAction = "notification_action"
	MsgPageSnapshot       = "page_snapshot"
	MsgPageVisible        = "page_visible"
)

// ErrUnknownMessage is returned for unsupported message types.
var ErrUnknownMessage = errors.New("unknown message type")

type windowMessage struct {
	Event string `json:"event"`
}

type notificationMessage struct {
	ServiceID string `json:"serviceId"`
	Text      string `json:"text,omitempty"`
	Index     *int   `json:"index,omitempty"`
}

// Dispatch handles a message from a render client. It is the websocket
// counterpart of the notification, window and session routes.
func (h *Handlers) Dispatch(ctx context.Context, msgType string, data []byte) (any, error) {
	switch msgType {
	case MsgWindow:
		var msg windowMessage
		if err := decode(data, &msg); err != nil {
			return nil, err
		}
		ev, err := notification.ParseWindowEvent(msg.Event)
		if err != nil {
			return nil, err
		}
		if err := h.router.WindowEvent(ctx, ev); err != nil {
			return nil, err
		}
		return map[string]bool{"visible": h.router.Visible()}, nil

	case MsgNotificationClick, MsgNotificationReply, MsgNotificationAction:
		var msg notificationMessage
		if err := decode(data, &msg); err != nil {
			return nil, err
		}
		if err := utils.ValidateID(msg.ServiceID, "serviceId", true); err != nil {
			return nil, err
		}
		return nil, h.dispatchNotification(ctx, msgType, msg)

	case MsgPageSnapshot:
		var msg SnapshotRequest
		if err := decode(data, &msg); err != nil {
			return nil, err
		}
		queued, err := h.snapshot(msg.Partition, msg)
		if err != nil {
			return nil, err
		}
		return map[string]bool{"queued": queued}, nil

	case MsgPageVisible:
		var msg VisibleRequest
		if err := decode(data, &msg); err != nil {
			return nil, err
		}
		return nil, h.visible(msg.Partition, msg.Title)

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMessage, msgType)
	}
}

func (h *Handlers) dispatchNotification(ctx context.Context, msgType string, msg notificationMessage) error {
	switch msgType {
	case MsgNotificationClick:
		h.router.Click(msg.ServiceID)
	case MsgNotificationReply:
		if err := utils.ValidateMessage(msg.Text); err != nil {
			return err
		}
		h.router.Reply(ctx, msg.ServiceID, msg.Text)
	case MsgNotificationAction:
		if msg.Index == nil {
			return errors.New("index is required")
		}
		h.router.Action(msg.ServiceID, *msg.Index)
	}
	return nil
}

func decode(data []byte, out any) error {
	if len(data) == 0 {
		return errors.New("message data is required")
	}
	if err := sonic.Unmarshal(data, out); err != nil {
		return fmt.Errorf("invalid message data: %w", err)
	}
	return nil
}
