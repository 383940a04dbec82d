package activity

import (
	"context"
	"sync"
	"time"

	"github.com/GriffinCanCode/TextNexus/backend/internal/domain/notification"
	"github.com/GriffinCanCode/TextNexus/backend/internal/infrastructure/monitoring"
	"go.uber.org/zap"
)

// Config tunes every monitor owned by a Hub.
type Config struct {
	// Spacing is the minimum gap between two signals of one session.
	Spacing time.Duration
	// QueueLimit bounds each session queue; the oldest signal is dropped.
	QueueLimit int
}

func (c Config) withDefaults() Config {
	if c.Spacing <= 0 {
		c.Spacing = defaultSpacing
	}
	if c.QueueLimit <= 0 {
		c.QueueLimit = defaultQueueLimit
	}
	return c
}

// DetectorFactory picks a detector for a session.
type DetectorFactory func(Session) Detector

// HeuristicFactory returns Heuristic detectors using each session's XPath.
func HeuristicFactory(logger *zap.Logger) DetectorFactory {
	return func(s Session) Detector {
		return Heuristic{XPath: s.XPath, Logger: logger}
	}
}

// StaticFactory uses one detector for every session.
func StaticFactory(d Detector) DetectorFactory {
	return func(Session) Detector { return d }
}

// Hub owns one Monitor per session and merges their output.
type Hub struct {
	cfg     Config
	factory DetectorFactory
	logger  *zap.Logger
	metrics *monitoring.Metrics

	ctx    context.Context
	cancel context.CancelFunc
	events chan Event

	mu       sync.Mutex
	monitors map[string]*Monitor
	closed   bool
}

// NewHub creates a hub. factory defaults to HeuristicFactory.
func NewHub(cfg Config, factory DetectorFactory, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	if factory == nil {
		factory = HeuristicFactory(logger)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		cfg:      cfg.withDefaults(),
		factory:  factory,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
		events:   make(chan Event),
		monitors: make(map[string]*Monitor),
	}
}

// WithMetrics adds metrics tracking to the hub
func (h *Hub) WithMetrics(metrics *monitoring.Metrics) *Hub {
	h.metrics = metrics
	return h
}

// Events is the merged stream of every session's signals.
func (h *Hub) Events() <-chan Event {
	return h.events
}

// Requests adapts Events for the notification router until ctx is done.
func (h *Hub) Requests(ctx context.Context) <-chan notification.ShowRequest {
	out := make(chan notification.ShowRequest)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case <-h.ctx.Done():
				return
			case ev := <-h.events:
				select {
				case out <- ev.Request():
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

// Register starts monitoring a session, replacing any existing monitor
// with the same ID.
func (h *Hub) Register(s Session) *Monitor {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	old := h.monitors[s.ID]
	m := newMonitor(h.ctx, s, h.factory(s), h.cfg, h.events, h.logger.With(zap.String("session", s.ID)), h.metrics)
	h.monitors[s.ID] = m
	h.mu.Unlock()

	if old != nil {
		old.Close()
	}
	h.logger.Debug("Monitoring session", zap.String("session", s.ID), zap.String("type", s.Type))
	return m
}

// Unregister stops monitoring a session.
func (h *Hub) Unregister(id string) bool {
	h.mu.Lock()
	m, ok := h.monitors[id]
	delete(h.monitors, id)
	h.mu.Unlock()

	if ok {
		m.Close()
	}
	return ok
}

// Monitor returns the monitor for a session.
func (h *Hub) Monitor(id string) (*Monitor, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	m, ok := h.monitors[id]
	return m, ok
}

// Sessions lists monitored sessions.
func (h *Hub) Sessions() []Session {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Session, 0, len(h.monitors))
	for _, m := range h.monitors {
		out = append(out, m.session)
	}
	return out
}

// Observe feeds a snapshot to a session's monitor.
func (h *Hub) Observe(id string, snap Snapshot) (bool, error) {
	m, ok := h.Monitor(id)
	if !ok {
		return false, ErrUnknownSession
	}
	return m.Observe(snap), nil
}

// Visible clears a session's queue.
func (h *Hub) Visible(id, title string) error {
	m, ok := h.Monitor(id)
	if !ok {
		return ErrUnknownSession
	}
	m.Visible(title)
	return nil
}

// Close stops every monitor.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	monitors := h.monitors
	h.monitors = make(map[string]*Monitor)
	h.mu.Unlock()

	h.cancel()
	for _, m := range monitors {
		m.Close()
	}
}
