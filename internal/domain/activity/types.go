package activity

import (
	"errors"
	"fmt"
	"time"

	"github.com/GriffinCanCode/TextNexus/backend/internal/domain/notification"
)

// ErrUnknownSession is returned for snapshots of unregistered sessions.
var ErrUnknownSession = errors.New("activity: unknown session")

// Session identifies one embedded service page.
type Session struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
	// XPath optionally selects unread counters on this service's pages.
	XPath string `json:"xpath,omitempty"`
}

// Snapshot is the observable state of a page at one moment.
type Snapshot struct {
	Title string    `json:"title"`
	HTML  string    `json:"html,omitempty"`
	At    time.Time `json:"at"`
}

// Signal is detected unread activity.
type Signal struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Count int    `json:"count"`
}

// Detector decides whether cur shows new activity compared with prev.
type Detector interface {
	Detect(prev, cur Snapshot) (Signal, bool)
}

// DetectorFunc adapts a function to Detector.
type DetectorFunc func(prev, cur Snapshot) (Signal, bool)

func (f DetectorFunc) Detect(prev, cur Snapshot) (Signal, bool) { return f(prev, cur) }

// Event is a queued signal for a session.
type Event struct {
	Session Session
	Signal  Signal
	At      time.Time
}

// Request converts the event into a router request.
func (e Event) Request() notification.ShowRequest {
	return notification.ShowRequest{
		ServiceID:   e.Session.ID,
		ServiceName: e.Session.Name,
		ServiceType: e.Session.Type,
		Title:       e.Signal.Title,
		Body:        e.Signal.Body,
	}
}

func signalFor(count int) Signal {
	if count <= 1 {
		return Signal{Title: "New Activity", Body: "New activity", Count: 1}
	}
	return Signal{Title: "New Activity", Body: fmt.Sprintf("%d new notifications", count), Count: count}
}
