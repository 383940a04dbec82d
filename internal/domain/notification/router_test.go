package notification

import (
	"context"
	"testing"
	"time"

	"github.com/GriffinCanCode/TextNexus/backend/internal/infrastructure/monitoring"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T, cfg Config) (*Router, *fakeNotifier, *fakeUI) {
	t.Helper()
	n, ui := &fakeNotifier{}, &fakeUI{}
	if cfg.RestoreDelay == 0 {
		cfg.RestoreDelay = 10 * time.Millisecond
	}
	if cfg.ConfirmTTL == 0 {
		cfg.ConfirmTTL = 10 * time.Millisecond
	}
	r := NewRouter(n, ui, cfg, nil)
	t.Cleanup(r.Close)
	return r, n, ui
}

func slack(title string) ShowRequest {
	return ShowRequest{
		ServiceID:   "slack-1",
		ServiceName: "Slack",
		ServiceType: "slack",
		Title:       title,
		Body:        "hello",
	}
}

func TestShowSuppressedWhileVisible(t *testing.T) {
	ctx := context.Background()
	r, n, _ := newTestRouter(t, Config{})

	assert.True(t, r.Visible())
	assert.False(t, r.Show(ctx, slack("New message")))
	assert.Equal(t, 0, n.count())
	assert.Empty(t, r.Tracked())
}

func TestShowBuildsNotification(t *testing.T) {
	ctx := context.Background()
	r, n, _ := newTestRouter(t, Config{
		Icons:       map[string]string{"slack": "slack.svg"},
		DefaultIcon: "default.png",
	})
	require.NoError(t, r.WindowEvent(ctx, WindowBlur))

	req := slack("<b>Alice</b>")
	req.Body = `<script>alert(1)</script>Lunch &amp; <i>coffee</i>?`
	require.True(t, r.Show(ctx, req))

	got, _ := n.last()
	assert.Equal(t, "Slack - Alice", got.Title)
	assert.Equal(t, "Lunch & coffee?", got.Body)
	assert.Equal(t, "slack.svg", got.Icon)
	assert.Equal(t, "slack-1", got.Tag)
	assert.True(t, got.HasReply)
	assert.Equal(t, ReplyPlaceholder, got.ReplyPlaceholder)
	assert.Equal(t, []Button{{Type: "button", Text: "Reply"}, {Type: "button", Text: "Mark as Read"}}, got.Actions)
	assert.NotEmpty(t, got.ID)
	assert.Equal(t, []string{"slack-1"}, r.Tracked())
}

func TestShowTitleAndIconFallbacks(t *testing.T) {
	ctx := context.Background()
	r, n, _ := newTestRouter(t, Config{
		Icons:       map[string]string{"slack": "slack.svg"},
		DefaultIcon: "default.png",
	})
	require.NoError(t, r.WindowEvent(ctx, WindowHide))

	require.True(t, r.Show(ctx, ShowRequest{ServiceID: "x", ServiceType: "custom", Icon: "custom.png"}))
	got, _ := n.last()
	assert.Equal(t, "TextNexus", got.Title)
	assert.Equal(t, "custom.png", got.Icon)

	require.True(t, r.Show(ctx, ShowRequest{ServiceID: "y", ServiceName: "Mail", Title: "hi"}))
	got, _ = n.last()
	assert.Equal(t, "Mail - hi", got.Title)
	assert.Equal(t, "default.png", got.Icon)
}

func TestShowSameServiceKeepsOneHandle(t *testing.T) {
	ctx := context.Background()
	r, n, _ := newTestRouter(t, Config{})
	require.NoError(t, r.WindowEvent(ctx, WindowBlur))

	require.True(t, r.Show(ctx, slack("one")))
	_, first := n.last()
	require.True(t, r.Show(ctx, slack("two")))
	_, second := n.last()

	assert.Equal(t, []string{"slack-1"}, r.Tracked())
	h, ok := r.Handle("slack-1")
	require.True(t, ok)
	assert.Equal(t, second.ID(), h.ID())
	// The superseded notification is not closed
	assert.Equal(t, 0, first.closeCount())
}

func TestShowFailures(t *testing.T) {
	ctx := context.Background()
	r, n, _ := newTestRouter(t, Config{})
	require.NoError(t, r.WindowEvent(ctx, WindowBlur))

	assert.False(t, r.Show(ctx, ShowRequest{}), "service id is required")

	n.setFail(true)
	assert.False(t, r.Show(ctx, slack("x")))
	assert.Empty(t, r.Tracked())
}

func TestClearAllThenShowSucceeds(t *testing.T) {
	ctx := context.Background()
	r, n, _ := newTestRouter(t, Config{})
	require.NoError(t, r.WindowEvent(ctx, WindowBlur))

	require.True(t, r.Show(ctx, slack("a")))
	require.True(t, r.Show(ctx, ShowRequest{ServiceID: "gmail-1", Title: "b"}))
	handles := append([]*fakeHandle(nil), n.handles...)

	r.ClearAll()
	assert.Empty(t, r.Tracked())
	for _, h := range handles {
		assert.Equal(t, 1, h.closeCount())
	}

	assert.True(t, r.Show(ctx, slack("again")))
	assert.True(t, r.Show(ctx, ShowRequest{ServiceID: "gmail-1"}))
	assert.Len(t, r.Tracked(), 2)
}

func TestClearOne(t *testing.T) {
	ctx := context.Background()
	r, n, _ := newTestRouter(t, Config{})
	require.NoError(t, r.WindowEvent(ctx, WindowBlur))

	require.True(t, r.Show(ctx, slack("a")))
	_, h := n.last()
	require.True(t, r.Show(ctx, ShowRequest{ServiceID: "gmail-1"}))

	r.Clear("slack-1")
	r.Clear("unknown")
	assert.Equal(t, []string{"gmail-1"}, r.Tracked())
	assert.Equal(t, 1, h.closeCount())
}

func TestWindowEvents(t *testing.T) {
	ctx := context.Background()
	r, n, _ := newTestRouter(t, Config{})

	require.NoError(t, r.WindowEvent(ctx, WindowBlur))
	require.True(t, r.Show(ctx, slack("a")))
	_, h := n.last()

	// Hiding does not retroactively clear
	require.NoError(t, r.WindowEvent(ctx, WindowHide))
	assert.Len(t, r.Tracked(), 1)

	require.NoError(t, r.WindowEvent(ctx, WindowShow))
	assert.True(t, r.Visible())
	assert.Empty(t, r.Tracked())
	assert.Equal(t, 1, h.closeCount())

	require.NoError(t, r.WindowEvent(ctx, WindowBlur))
	require.True(t, r.Show(ctx, slack("b")))
	require.NoError(t, r.WindowEvent(ctx, WindowFocus))
	assert.Empty(t, r.Tracked())

	assert.ErrorIs(t, r.WindowEvent(ctx, WindowEvent("maximize")), ErrUnknownWindowEvent)
}

func TestParseWindowEvent(t *testing.T) {
	ev, err := ParseWindowEvent(" Focus ")
	require.NoError(t, err)
	assert.Equal(t, WindowFocus, ev)

	_, err = ParseWindowEvent("minimize")
	assert.ErrorIs(t, err, ErrUnknownWindowEvent)
}

func TestClickRestoresThenSwitches(t *testing.T) {
	ctx := context.Background()
	r, _, ui := newTestRouter(t, Config{})
	require.NoError(t, r.WindowEvent(ctx, WindowBlur))
	require.True(t, r.Show(ctx, slack("a")))

	r.Click("slack-1")
	assert.Empty(t, r.Tracked())
	assert.Equal(t, []uiEvent{{kind: "window-restore"}}, ui.snapshot())

	assert.Eventually(t, func() bool { return len(ui.snapshot()) == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, uiEvent{kind: "switch-to-service", serviceID: "slack-1"}, ui.snapshot()[1])
}

func TestCloseCancelsPendingSwitch(t *testing.T) {
	r, _, ui := newTestRouter(t, Config{RestoreDelay: 50 * time.Millisecond})

	r.Click("slack-1")
	r.Close()

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, []uiEvent{{kind: "window-restore"}}, ui.snapshot())
}

func TestReplyForwardsAndConfirms(t *testing.T) {
	ctx := context.Background()
	r, n, ui := newTestRouter(t, Config{Icons: map[string]string{"slack": "slack.svg"}})
	require.NoError(t, r.WindowEvent(ctx, WindowBlur))
	require.True(t, r.Show(ctx, slack("a")))
	_, original := n.last()

	r.Reply(ctx, "slack-1", "on my way")

	assert.Equal(t, []uiEvent{{kind: "send-reply", serviceID: "slack-1", text: "on my way"}}, ui.snapshot())
	assert.Empty(t, r.Tracked())
	assert.Equal(t, 0, original.closeCount(), "reply path does not close the original")

	confirm, h := n.last()
	assert.Equal(t, "Slack - Reply Sent", confirm.Title)
	assert.Equal(t, "Reply sent successfully!", confirm.Body)
	assert.Equal(t, "slack.svg", confirm.Icon)
	assert.True(t, confirm.Silent)

	assert.Eventually(t, func() bool { return h.closeCount() == 1 }, time.Second, 5*time.Millisecond)
}

func TestReplyWithoutTrackedHandle(t *testing.T) {
	ctx := context.Background()
	r, n, ui := newTestRouter(t, Config{})

	r.Reply(ctx, "gone", "hi")
	assert.Len(t, ui.snapshot(), 1)
	confirm, _ := n.last()
	assert.Equal(t, "TextNexus - Reply Sent", confirm.Title)
}

func TestReplyConfirmationFailureIsSwallowed(t *testing.T) {
	ctx := context.Background()
	r, n, ui := newTestRouter(t, Config{})
	n.setFail(true)

	assert.NotPanics(t, func() { r.Reply(ctx, "slack-1", "hi") })
	assert.Len(t, ui.snapshot(), 1)
}

func TestActions(t *testing.T) {
	ctx := context.Background()
	r, n, _ := newTestRouter(t, Config{})
	require.NoError(t, r.WindowEvent(ctx, WindowBlur))
	require.True(t, r.Show(ctx, slack("a")))
	_, h := n.last()

	r.Action("slack-1", ActionIndexReply)
	assert.Len(t, r.Tracked(), 1)

	r.Action("slack-1", 7)
	assert.Len(t, r.Tracked(), 1)

	r.Action("slack-1", ActionIndexMarkAsRead)
	assert.Empty(t, r.Tracked())
	assert.Equal(t, 1, h.closeCount())
}

func TestMutedService(t *testing.T) {
	ctx := context.Background()
	r, n, _ := newTestRouter(t, Config{})
	require.NoError(t, r.WindowEvent(ctx, WindowBlur))
	require.True(t, r.Show(ctx, slack("a")))
	_, h := n.last()

	r.SetMuted("slack-1", true)
	assert.True(t, r.Muted("slack-1"))
	assert.Equal(t, 1, h.closeCount())
	assert.False(t, r.Show(ctx, slack("b")))

	r.SetMuted("slack-1", false)
	assert.True(t, r.Show(ctx, slack("c")))
}

func TestBackgroundNotice(t *testing.T) {
	ctx := context.Background()
	r, n, _ := newTestRouter(t, Config{BackgroundNotice: true, DefaultIcon: "tray.png"})

	require.NoError(t, r.WindowEvent(ctx, WindowHide))
	require.Equal(t, 1, n.count())
	got, _ := n.last()
	assert.Equal(t, "TextNexus", got.Title)
	assert.Contains(t, got.Body, "running in the background")
	assert.Empty(t, r.Tracked())

	// Already hidden: no second notice
	require.NoError(t, r.WindowEvent(ctx, WindowHide))
	assert.Equal(t, 1, n.count())
}

func TestConsume(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r, n, _ := newTestRouter(t, Config{})
	require.NoError(t, r.WindowEvent(ctx, WindowBlur))

	signals := make(chan ShowRequest)
	done := make(chan struct{})
	go func() {
		r.Consume(ctx, signals)
		close(done)
	}()

	signals <- slack("a")
	signals <- ShowRequest{ServiceID: "gmail-1"}
	close(signals)
	<-done

	assert.Equal(t, 2, n.count())
	assert.Equal(t, []string{"gmail-1", "slack-1"}, r.Tracked())
}

func TestConsumeStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r, _, _ := newTestRouter(t, Config{})

	done := make(chan struct{})
	go func() {
		r.Consume(ctx, make(chan ShowRequest))
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Consume did not return")
	}
}

func TestRouterMetrics(t *testing.T) {
	ctx := context.Background()
	m := monitoring.NewMetrics()
	r, _, _ := newTestRouter(t, Config{})
	r.WithMetrics(m)

	r.Show(ctx, slack("suppressed"))
	require.NoError(t, r.WindowEvent(ctx, WindowBlur))
	r.Show(ctx, slack("shown"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Notifications.WithLabelValues("show", monitoring.StatusSkipped)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Notifications.WithLabelValues("show", monitoring.StatusSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NotificationsTracked))
}

func TestShowDropsHandleWhenWindowFocusedMidShow(t *testing.T) {
	ctx := context.Background()
	r, n, _ := newTestRouter(t, Config{})
	require.NoError(t, r.WindowEvent(ctx, WindowBlur))

	n.entered = make(chan struct{}, 1)
	n.gate = make(chan struct{})

	shown := make(chan bool, 1)
	go func() { shown <- r.Show(ctx, slack("New message")) }()

	<-n.entered
	require.NoError(t, r.WindowEvent(ctx, WindowFocus))
	close(n.gate)

	assert.False(t, <-shown)
	assert.True(t, r.Visible())
	assert.Empty(t, r.Tracked())

	_, h := n.last()
	assert.Equal(t, 1, h.closeCount())
}

func TestShowDropsHandleWhenMutedMidShow(t *testing.T) {
	ctx := context.Background()
	r, n, _ := newTestRouter(t, Config{})
	require.NoError(t, r.WindowEvent(ctx, WindowBlur))

	n.entered = make(chan struct{}, 1)
	n.gate = make(chan struct{})

	shown := make(chan bool, 1)
	go func() { shown <- r.Show(ctx, slack("New message")) }()

	<-n.entered
	r.SetMuted("slack-1", true)
	close(n.gate)

	assert.False(t, <-shown)
	assert.Empty(t, r.Tracked())

	_, h := n.last()
	assert.Equal(t, 1, h.closeCount())
}
