package notify

import (
	"context"
	"sync"
	"testing"

	"github.com/GriffinCanCode/TextNexus/backend/internal/domain/notification"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sent struct {
	event   string
	payload any
}

type fakeBroadcaster struct {
	mu      sync.Mutex
	clients int
	events  []sent
}

func (f *fakeBroadcaster) Broadcast(event string, payload any) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, sent{event, payload})
	return f.clients
}

func (f *fakeBroadcaster) names() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.events))
	for i, e := range f.events {
		out[i] = e.event
	}
	return out
}

func sample() notification.Notification {
	return notification.Notification{ID: "n-1", Tag: "slack-1", Title: "Slack - New Activity", Body: "New activity"}
}

func TestUIShowAndClose(t *testing.T) {
	out := &fakeBroadcaster{clients: 2}
	ui := NewUI(out, nil)

	h, err := ui.Show(context.Background(), sample())
	require.NoError(t, err)
	assert.Equal(t, "n-1", h.ID())

	require.NoError(t, h.Close())
	require.NoError(t, h.Close())

	assert.Equal(t, []string{EventShow, EventClose}, out.names())
	assert.Equal(t, closeMessage{ID: "n-1", Tag: "slack-1"}, out.events[1].payload)
}

func TestUIShowWithoutClients(t *testing.T) {
	ui := NewUI(&fakeBroadcaster{}, nil)
	_, err := ui.Show(context.Background(), sample())
	assert.ErrorIs(t, err, ErrNoReceivers)
}

func TestUIEvents(t *testing.T) {
	out := &fakeBroadcaster{clients: 1}
	ui := NewUI(out, nil)

	ui.WindowRestore()
	ui.SwitchToService("slack-1")
	ui.SendReply("slack-1", "on my way")

	assert.Equal(t, []string{EventWindowRestore, EventSwitchToService, EventSendReply}, out.names())
	assert.Equal(t, map[string]string{"serviceId": "slack-1"}, out.events[1].payload)
	assert.Equal(t, map[string]string{"serviceId": "slack-1", "text": "on my way"}, out.events[2].payload)
}

func TestUIWorksWithRouter(t *testing.T) {
	out := &fakeBroadcaster{clients: 1}
	ui := NewUI(out, nil)
	router := notification.NewRouter(ui, ui, notification.Config{}, nil)
	defer router.Close()

	ctx := context.Background()
	require.NoError(t, router.WindowEvent(ctx, notification.WindowBlur))
	require.True(t, router.Show(ctx, notification.ShowRequest{ServiceID: "slack-1", ServiceName: "Slack", Title: "New Activity"}))
	router.Clear("slack-1")

	assert.Equal(t, []string{EventShow, EventClose}, out.names())
}
