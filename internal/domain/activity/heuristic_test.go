package activity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHeuristicTitle(t *testing.T) {
	h := Heuristic{}

	tests := []struct {
		name      string
		prev, cur string
		want      bool
		count     int
	}{
		{"unchanged", "(2) Slack", "(2) Slack", false, 0},
		{"count in parens", "Slack", "(3) Slack", true, 3},
		{"bullet", "WhatsApp", "• WhatsApp", true, 1},
		{"asterisk", "Inbox", "*Inbox", true, 1},
		{"digits without parens", "Inbox", "Inbox 4", true, 1},
		{"keyword new", "Chat", "New reply - Chat", true, 1},
		{"keyword message", "Chat", "Message from Bob", true, 1},
		{"plain rename", "Slack | general", "Slack | random", false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig, ok := h.Detect(Snapshot{Title: tt.prev}, Snapshot{Title: tt.cur})
			assert.Equal(t, tt.want, ok)
			if tt.want {
				assert.Equal(t, tt.count, sig.Count)
				assert.Equal(t, "New Activity", sig.Title)
			}
		})
	}
}

func TestSignalBody(t *testing.T) {
	assert.Equal(t, "New activity", signalFor(1).Body)
	assert.Equal(t, "5 new notifications", signalFor(5).Body)
	assert.Equal(t, 1, signalFor(0).Count)
}

func TestHeuristicBadges(t *testing.T) {
	h := Heuristic{}
	before := `<div><span class="unread-badge">2</span><span class="other">9</span></div>`
	after := `<div><span class="unread-badge">2</span><div class="notification-count">3</div></div>`

	sig, ok := h.Detect(Snapshot{Title: "App", HTML: before}, Snapshot{Title: "App", HTML: after})
	assert.True(t, ok)
	assert.Equal(t, 5, sig.Count)

	_, ok = h.Detect(Snapshot{Title: "App", HTML: after}, Snapshot{Title: "App", HTML: before})
	assert.False(t, ok, "a falling count is not activity")

	_, ok = h.Detect(Snapshot{Title: "App"}, Snapshot{Title: "App", HTML: `<span class="badge">0</span>`})
	assert.False(t, ok)
}

func TestHeuristicBadgeWithoutDigits(t *testing.T) {
	h := Heuristic{}
	sig, ok := h.Detect(Snapshot{HTML: `<p>hi</p>`}, Snapshot{HTML: `<i class="dot badge"></i>`})
	assert.True(t, ok)
	assert.Equal(t, 1, sig.Count)
}

func TestHeuristicNestedBadgesCountedOnce(t *testing.T) {
	h := Heuristic{}
	markup := `<div class="badge-wrap"><span class="badge">4</span></div>`
	assert.Equal(t, 4, h.badges(markup))
}

func TestHeuristicXPath(t *testing.T) {
	h := Heuristic{XPath: `//span[@aria-label='unread']`}
	markup := `<div><span aria-label="unread">2</span><span aria-label="unread">1</span><span class="badge">7</span></div>`
	assert.Equal(t, 3, h.badges(markup))

	bad := Heuristic{XPath: `//span[`}
	assert.Equal(t, 0, bad.badges(markup))
}

func TestEventRequest(t *testing.T) {
	ev := Event{
		Session: Session{ID: "persist:slack-1", Name: "Slack", Type: "slack"},
		Signal:  signalFor(2),
	}
	req := ev.Request()
	assert.Equal(t, "persist:slack-1", req.ServiceID)
	assert.Equal(t, "Slack", req.ServiceName)
	assert.Equal(t, "slack", req.ServiceType)
	assert.Equal(t, "2 new notifications", req.Body)
}
