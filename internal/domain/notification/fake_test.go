package notification

import (
	"context"
	"errors"
	"sync"
)

var errPlatform = errors.New("notification daemon gone")

type fakeHandle struct {
	id string

	mu     sync.Mutex
	closed int
}

func (h *fakeHandle) ID() string { return h.id }

func (h *fakeHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed++
	return nil
}

func (h *fakeHandle) closeCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

type fakeNotifier struct {
	mu      sync.Mutex
	shown   []Notification
	handles []*fakeHandle
	fail    bool

	// When gate is set, Show signals entered and then blocks until gate
	// is closed.
	entered chan struct{}
	gate    chan struct{}
}

func (f *fakeNotifier) Show(_ context.Context, n Notification) (Handle, error) {
	if f.gate != nil {
		f.entered <- struct{}{}
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return nil, errPlatform
	}
	h := &fakeHandle{id: n.ID}
	f.shown = append(f.shown, n)
	f.handles = append(f.handles, h)
	return h, nil
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.shown)
}

func (f *fakeNotifier) last() (Notification, *fakeHandle) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := len(f.shown) - 1
	return f.shown[i], f.handles[i]
}

func (f *fakeNotifier) setFail(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = v
}

type uiEvent struct {
	kind      string
	serviceID string
	text      string
}

type fakeUI struct {
	mu     sync.Mutex
	events []uiEvent
}

func (u *fakeUI) WindowRestore() { u.add(uiEvent{kind: "window-restore"}) }

func (u *fakeUI) SwitchToService(id string) {
	u.add(uiEvent{kind: "switch-to-service", serviceID: id})
}

func (u *fakeUI) SendReply(id, text string) {
	u.add(uiEvent{kind: "send-reply", serviceID: id, text: text})
}

func (u *fakeUI) add(e uiEvent) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.events = append(u.events, e)
}

func (u *fakeUI) snapshot() []uiEvent {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]uiEvent(nil), u.events...)
}
