package activity

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// always reports one item for every snapshot after the first.
var always = DetectorFunc(func(_, cur Snapshot) (Signal, bool) {
	return Signal{Title: cur.Title, Count: 1}, true
})

func newTestHub(t *testing.T, spacing time.Duration) *Hub {
	t.Helper()
	h := NewHub(Config{Spacing: spacing, QueueLimit: 3}, StaticFactory(always), nil)
	t.Cleanup(h.Close)
	return h
}

func receive(t *testing.T, h *Hub, within time.Duration) (Event, bool) {
	t.Helper()
	select {
	case ev := <-h.Events():
		return ev, true
	case <-time.After(within):
		return Event{}, false
	}
}

func TestFirstSnapshotIsBaseline(t *testing.T) {
	h := newTestHub(t, time.Millisecond)
	h.Register(Session{ID: "s1"})

	queued, err := h.Observe("s1", Snapshot{Title: "first"})
	require.NoError(t, err)
	assert.False(t, queued)

	_, got := receive(t, h, 50*time.Millisecond)
	assert.False(t, got)
}

func TestQueueDrainsInOrderWithSpacing(t *testing.T) {
	spacing := 60 * time.Millisecond
	h := newTestHub(t, spacing)
	h.Register(Session{ID: "s1", Name: "Slack"})

	_, _ = h.Observe("s1", Snapshot{Title: "base"})
	for _, title := range []string{"a", "b", "c"} {
		queued, err := h.Observe("s1", Snapshot{Title: title})
		require.NoError(t, err)
		require.True(t, queued)
	}

	var stamps []time.Time
	var titles []string
	for i := 0; i < 3; i++ {
		ev, ok := receive(t, h, time.Second)
		require.True(t, ok)
		stamps = append(stamps, time.Now())
		titles = append(titles, ev.Signal.Title)
		assert.Equal(t, "Slack", ev.Session.Name)
	}
	assert.Equal(t, []string{"a", "b", "c"}, titles)
	for i := 1; i < len(stamps); i++ {
		assert.GreaterOrEqual(t, stamps[i].Sub(stamps[i-1]), spacing-15*time.Millisecond)
	}
}

func TestQueueLimitDropsOldest(t *testing.T) {
	h := newTestHub(t, time.Hour)
	m := h.Register(Session{ID: "s1"})

	m.Observe(Snapshot{Title: "base"})
	// The first signal is taken by the drain loop immediately
	m.Observe(Snapshot{Title: "first"})
	ev, ok := receive(t, h, time.Second)
	require.True(t, ok)
	assert.Equal(t, "first", ev.Signal.Title)

	// "1" is popped and then waits on the limiter
	m.Observe(Snapshot{Title: "1"})
	require.Eventually(t, func() bool { return m.Pending() == 0 }, time.Second, 5*time.Millisecond)

	for _, title := range []string{"2", "3", "4", "5"} {
		m.Observe(Snapshot{Title: title})
	}
	assert.Equal(t, 3, m.Pending())
}

func TestVisibleClearsQueue(t *testing.T) {
	h := newTestHub(t, 80*time.Millisecond)
	m := h.Register(Session{ID: "s1"})

	m.Observe(Snapshot{Title: "base"})
	m.Observe(Snapshot{Title: "a"})
	_, ok := receive(t, h, time.Second)
	require.True(t, ok)

	m.Observe(Snapshot{Title: "b"})
	m.Observe(Snapshot{Title: "c"})
	require.NoError(t, h.Visible("s1", "Slack"))
	assert.Equal(t, 0, m.Pending())

	_, got := receive(t, h, 200*time.Millisecond)
	assert.False(t, got, "signals seen by the user are not delivered")
}

func TestVisibleResetsTitleBaseline(t *testing.T) {
	h := NewHub(Config{Spacing: time.Millisecond}, nil, nil)
	defer h.Close()
	m := h.Register(Session{ID: "s1"})

	m.Observe(Snapshot{Title: "Slack"})
	assert.True(t, m.Observe(Snapshot{Title: "(1) Slack"}))
	_, _ = receive(t, h, time.Second)

	m.Visible("(1) Slack")
	assert.False(t, m.Observe(Snapshot{Title: "(1) Slack"}))
	assert.True(t, m.Observe(Snapshot{Title: "(2) Slack"}))
}

func TestUnknownSession(t *testing.T) {
	h := newTestHub(t, time.Millisecond)

	_, err := h.Observe("nope", Snapshot{})
	assert.ErrorIs(t, err, ErrUnknownSession)
	assert.ErrorIs(t, h.Visible("nope", ""), ErrUnknownSession)
	assert.False(t, h.Unregister("nope"))
}

func TestRegisterReplacesAndUnregister(t *testing.T) {
	h := newTestHub(t, time.Millisecond)
	first := h.Register(Session{ID: "s1", Name: "old"})
	second := h.Register(Session{ID: "s1", Name: "new"})
	assert.NotSame(t, first, second)

	sessions := h.Sessions()
	require.Len(t, sessions, 1)
	assert.Equal(t, "new", sessions[0].Name)

	assert.True(t, h.Unregister("s1"))
	assert.Empty(t, h.Sessions())
}

func TestRegisterAfterClose(t *testing.T) {
	h := NewHub(Config{}, nil, nil)
	h.Close()
	assert.Nil(t, h.Register(Session{ID: "s1"}))
	h.Close()
}

func TestRequestsAdaptsEvents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := newTestHub(t, time.Millisecond)
	h.Register(Session{ID: "persist:gmail", Name: "Gmail", Type: "gmail"})

	requests := h.Requests(ctx)
	_, _ = h.Observe("persist:gmail", Snapshot{Title: "Inbox"})
	_, _ = h.Observe("persist:gmail", Snapshot{Title: "Inbox (1)"})

	select {
	case req := <-requests:
		assert.Equal(t, "persist:gmail", req.ServiceID)
		assert.Equal(t, "gmail", req.ServiceType)
	case <-time.After(time.Second):
		t.Fatal("no request")
	}

	cancel()
	for range requests {
	}
}

func TestConcurrentObserveQueuesChangeOnce(t *testing.T) {
	titleChanged := DetectorFunc(func(prev, cur Snapshot) (Signal, bool) {
		time.Sleep(time.Millisecond)
		return Signal{Title: cur.Title, Count: 1}, cur.Title != prev.Title
	})
	h := NewHub(Config{Spacing: time.Hour, QueueLimit: 50}, StaticFactory(titleChanged), nil)
	t.Cleanup(h.Close)
	h.Register(Session{ID: "s1"})

	_, err := h.Observe("s1", Snapshot{Title: "WhatsApp"})
	require.NoError(t, err)

	var (
		wg     sync.WaitGroup
		queued atomic.Int32
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := h.Observe("s1", Snapshot{Title: "(1) WhatsApp"})
			assert.NoError(t, err)
			if ok {
				queued.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), queued.Load())
}
