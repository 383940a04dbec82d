package activity

import (
	"context"
	"sync"
	"time"

	"github.com/GriffinCanCode/TextNexus/backend/internal/infrastructure/monitoring"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	defaultSpacing    = time.Second
	defaultQueueLimit = 50
)

// Monitor watches one session. Detected signals go into a FIFO queue that
// is drained one at a time, at most one per spacing interval.
type Monitor struct {
	session  Session
	detector Detector
	limiter  *rate.Limiter
	limit    int
	out      chan<- Event
	logger   *zap.Logger
	metrics  *monitoring.Metrics

	// observeMu serializes Observe so each snapshot is compared against
	// the baseline left by the previous one.
	observeMu sync.Mutex

	mu       sync.Mutex
	baseline Snapshot
	seen     bool
	queue    []Event
	epoch    uint64

	wake chan struct{}
	stop context.CancelFunc
	done chan struct{}
}

func newMonitor(parent context.Context, session Session, detector Detector, cfg Config, out chan<- Event, logger *zap.Logger, metrics *monitoring.Metrics) *Monitor {
	ctx, cancel := context.WithCancel(parent)
	m := &Monitor{
		session:  session,
		detector: detector,
		limiter:  rate.NewLimiter(rate.Every(cfg.Spacing), 1),
		limit:    cfg.QueueLimit,
		out:      out,
		logger:   logger,
		metrics:  metrics,
		wake:     make(chan struct{}, 1),
		stop:     cancel,
		done:     make(chan struct{}),
	}
	go m.run(ctx)
	return m
}

// Session returns the monitored session.
func (m *Monitor) Session() Session { return m.session }

// Observe compares snap with the baseline and queues a signal if the
// detector reports one. The first snapshot only sets the baseline.
func (m *Monitor) Observe(snap Snapshot) bool {
	if snap.At.IsZero() {
		snap.At = time.Now()
	}

	m.observeMu.Lock()
	defer m.observeMu.Unlock()

	m.mu.Lock()
	if !m.seen {
		m.baseline, m.seen = snap, true
		m.mu.Unlock()
		return false
	}
	prev := m.baseline
	m.mu.Unlock()

	sig, ok := m.detector.Detect(prev, snap)

	m.mu.Lock()
	defer m.mu.Unlock()
	if !ok {
		// Badge counts always track the page; the title baseline only
		// moves once a change has been reported.
		m.baseline.HTML = snap.HTML
		m.baseline.At = snap.At
		return false
	}
	m.baseline = snap

	if m.limit > 0 && len(m.queue) >= m.limit {
		m.queue = m.queue[1:]
		m.metrics.RecordActivity("dropped")
	}
	m.queue = append(m.queue, Event{Session: m.session, Signal: sig, At: snap.At})
	m.metrics.RecordActivity("queued")

	select {
	case m.wake <- struct{}{}:
	default:
	}
	return true
}

// Visible clears the queue because the user is now looking at the page.
// title, when non-empty, becomes the new baseline title.
func (m *Monitor) Visible(title string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for range m.queue {
		m.metrics.RecordActivity("cleared")
	}
	m.queue = nil
	m.epoch++
	if title != "" {
		m.baseline.Title = title
		m.seen = true
	}
}

// Pending returns the number of queued signals.
func (m *Monitor) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// Close stops the drain loop and waits for it.
func (m *Monitor) Close() {
	m.stop()
	<-m.done
}

func (m *Monitor) run(ctx context.Context) {
	defer close(m.done)
	for {
		ev, epoch, ok := m.pop()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-m.wake:
				continue
			}
		}

		if err := m.limiter.Wait(ctx); err != nil {
			return
		}

		// Drop anything the page saw while we waited
		m.mu.Lock()
		stale := epoch != m.epoch
		m.mu.Unlock()
		if stale {
			continue
		}

		select {
		case m.out <- ev:
			m.metrics.RecordActivity("emitted")
			m.logger.Debug("Activity signal emitted",
				zap.String("session", m.session.ID),
				zap.Int("count", ev.Signal.Count),
			)
		case <-ctx.Done():
			return
		}
	}
}

func (m *Monitor) pop() (Event, uint64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.queue) == 0 {
		return Event{}, 0, false
	}
	ev := m.queue[0]
	m.queue = m.queue[1:]
	return ev, m.epoch, true
}
