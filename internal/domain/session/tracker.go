package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/GriffinCanCode/TextNexus/backend/internal/infrastructure/monitoring"
	"go.uber.org/zap"
)

const (
	defaultInterval     = 30 * time.Second
	defaultFlushTimeout = 5 * time.Second
)

// Store is the persistence surface the tracker writes through.
type Store interface {
	Save(ctx context.Context, key string, value any) bool
	LoadInto(ctx context.Context, key string, out any) bool
}

// Tracker periodically snapshots every registered session into the
// store, and once more when a session goes away or the process stops.
// Snapshots are idempotent overwrites of session-<partition>.
type Tracker struct {
	store        Store
	interval     time.Duration
	flushTimeout time.Duration
	logger       *zap.Logger
	metrics      *monitoring.Metrics
	now          func() time.Time

	mu        sync.Mutex
	sessions  map[string]*tracked
	closed    bool
	saved     int64
	failed    int64
	lastSaved *time.Time
}

type tracked struct {
	mu    sync.Mutex
	info  Info
	ready bool

	stop context.CancelFunc
	done chan struct{}
}

func (t *tracked) snapshot() (Info, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.info, t.ready
}

// NewTracker creates a tracker saving every interval (30s by default).
func NewTracker(store Store, interval time.Duration, logger *zap.Logger) *Tracker {
	if interval <= 0 {
		interval = defaultInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{
		store:        store,
		interval:     interval,
		flushTimeout: defaultFlushTimeout,
		logger:       logger,
		now:          time.Now,
		sessions:     make(map[string]*tracked),
	}
}

// WithMetrics adds metrics tracking to the tracker
func (t *Tracker) WithMetrics(metrics *monitoring.Metrics) *Tracker {
	t.metrics = metrics
	return t
}

// Register starts tracking a partition. A session is only saved once it is
// ready: registered with a URL, or touched with one later. Registering a
// tracked partition updates its info and keeps the schedule.
func (t *Tracker) Register(info Info) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed || info.Partition == "" {
		return
	}

	if s, ok := t.sessions[info.Partition]; ok {
		s.mu.Lock()
		s.info = info
		s.ready = s.ready || info.URL != ""
		s.mu.Unlock()
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &tracked{info: info, ready: info.URL != "", stop: cancel, done: make(chan struct{})}
	t.sessions[info.Partition] = s
	t.metrics.SetSessionsActive(len(t.sessions))
	go t.loop(ctx, s)

	t.logger.Debug("Tracking session",
		zap.String("partition", info.Partition),
		zap.String("service_type", info.ServiceType),
	)
}

// Touch records the page URL and marks the session ready.
func (t *Tracker) Touch(partition, url string) error {
	s, ok := t.lookup(partition)
	if !ok {
		return ErrUnknownPartition
	}
	s.mu.Lock()
	if url != "" {
		s.info.URL = url
	}
	s.ready = true
	s.mu.Unlock()
	return nil
}

// Unregister stops tracking a partition after one final save.
func (t *Tracker) Unregister(partition string) bool {
	t.mu.Lock()
	s, ok := t.sessions[partition]
	delete(t.sessions, partition)
	count := len(t.sessions)
	t.mu.Unlock()
	if !ok {
		return false
	}

	t.metrics.SetSessionsActive(count)
	s.stop()
	<-s.done
	t.flushOne(s)
	return true
}

// Partitions lists tracked partitions.
func (t *Tracker) Partitions() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	ids := make([]string, 0, len(t.sessions))
	for id := range t.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Get returns the last persisted record for a partition.
func (t *Tracker) Get(ctx context.Context, partition string) (Record, bool) {
	var rec Record
	if !t.store.LoadInto(ctx, Key(partition), &rec) {
		return Record{}, false
	}
	return rec, true
}

// SaveNow snapshots one partition immediately.
func (t *Tracker) SaveNow(ctx context.Context, partition string) (bool, error) {
	s, ok := t.lookup(partition)
	if !ok {
		return false, ErrUnknownPartition
	}
	return t.save(ctx, s), nil
}

// Flush saves every ready session with a fresh bounded context, so a
// canceled caller context never aborts the shutdown snapshot.
func (t *Tracker) Flush() int {
	t.mu.Lock()
	sessions := make([]*tracked, 0, len(t.sessions))
	for _, s := range t.sessions {
		sessions = append(sessions, s)
	}
	t.mu.Unlock()

	saved := 0
	for _, s := range sessions {
		if t.flushOne(s) {
			saved++
		}
	}
	return saved
}

// Close stops every schedule and flushes.
func (t *Tracker) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	sessions := make([]*tracked, 0, len(t.sessions))
	for _, s := range t.sessions {
		sessions = append(sessions, s)
	}
	t.mu.Unlock()

	for _, s := range sessions {
		s.stop()
		<-s.done
	}
	n := t.Flush()

	t.mu.Lock()
	t.sessions = make(map[string]*tracked)
	t.mu.Unlock()
	t.metrics.SetSessionsActive(0)
	t.logger.Info("Session tracker stopped", zap.Int("flushed", n))
}

// Stats returns tracker statistics.
func (t *Tracker) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Stats{
		Active:    len(t.sessions),
		Saved:     t.saved,
		Failed:    t.failed,
		LastSaved: t.lastSaved,
	}
}

func (t *Tracker) lookup(partition string) (*tracked, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.sessions[partition]
	return s, ok
}

func (t *Tracker) loop(ctx context.Context, s *tracked) {
	defer close(s.done)
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Stopping the loop must not abort a write already under way
			t.flushOne(s)
		}
	}
}

func (t *Tracker) flushOne(s *tracked) bool {
	ctx, cancel := context.WithTimeout(context.Background(), t.flushTimeout)
	defer cancel()
	return t.save(ctx, s)
}

func (t *Tracker) save(ctx context.Context, s *tracked) bool {
	info, ready := s.snapshot()
	if !ready {
		t.metrics.RecordSessionSaved(monitoring.StatusSkipped)
		return false
	}

	now := t.now()
	rec := Record{
		Partition:    info.Partition,
		ServiceName:  info.ServiceName,
		ServiceType:  info.ServiceType,
		LastAccessed: now.UnixMilli(),
		URL:          info.URL,
	}

	ok := t.store.Save(ctx, Key(info.Partition), rec)

	t.mu.Lock()
	if ok {
		t.saved++
		t.lastSaved = &now
	} else {
		t.failed++
	}
	t.mu.Unlock()

	if !ok {
		t.metrics.RecordSessionSaved(monitoring.StatusError)
		t.logger.Warn("Failed to save session snapshot", zap.String("partition", info.Partition))
		return false
	}
	t.metrics.RecordSessionSaved(monitoring.StatusSuccess)
	t.logger.Debug("Session snapshot saved", zap.String("partition", info.Partition))
	return true
}
