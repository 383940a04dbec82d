package persistence

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/GriffinCanCode/TextNexus/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/TextNexus/backend/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/TextNexus/backend/internal/providers/storage"
	"github.com/bytedance/sonic"
	"go.uber.org/zap"
)

// Slot names a coordinator position. Reads walk slots in Priority order.
type Slot string

const (
	SlotDurable  Slot = "durable"
	SlotDocument Slot = "document"
	SlotLocal    Slot = "local"
	SlotSession  Slot = "session"
)

// Priority is the read order.
var Priority = []Slot{SlotDurable, SlotDocument, SlotLocal, SlotSession}

// BackupPrefix is prepended to a key to address its backup in the durable slot.
const BackupPrefix = "backup-"

// ErrVerification marks a durable write whose read-back differs from what
// was written.
var ErrVerification = errors.New("persistence: read-back verification failed")

// Slots maps positions to backends. Nil backends are ignored.
type Slots map[Slot]storage.Backend

// canonical encodes with sorted keys and exact numbers so equal documents
// compare byte for byte.
var canonical = sonic.Config{
	SortMapKeys:      true,
	UseNumber:        true,
	CompactMarshaler: true,
	ValidateString:   true,
}.Froze()

// BackupKey returns the key holding the previous value of key.
func BackupKey(key string) string {
	return BackupPrefix + key
}

// BackendStatus reports one slot for health checks.
type BackendStatus struct {
	Slot      Slot   `json:"slot"`
	Backend   string `json:"backend"`
	State     string `json:"state"`
	LastError string `json:"last_error,omitempty"`
	StaleKeys int    `json:"stale_keys"`
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithMetrics records per-slot operations.
func WithMetrics(m *monitoring.Metrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}

// WithBreaker sets how many consecutive failures open a slot's breaker and
// how long it stays open.
func WithBreaker(failures uint32, timeout time.Duration) Option {
	return func(c *Coordinator) {
		c.breakerFailures = failures
		c.breakerTimeout = timeout
	}
}

// WithSanitizer replaces DefaultSanitizer.
func WithSanitizer(s Sanitizer) Option {
	return func(c *Coordinator) { c.sanitizer = s }
}

// Coordinator writes every value to all configured backends and reads it
// back from the first one that has it. It never returns errors: failures
// are logged, counted, and folded into the boolean results.
type Coordinator struct {
	slots     []*guarded
	durable   *guarded
	sanitizer Sanitizer
	logger    *zap.Logger
	metrics   *monitoring.Metrics

	breakerFailures uint32
	breakerTimeout  time.Duration

	// stale holds keys whose last save failed on a slot; those slots are
	// consulted last when loading the key.
	mu    sync.Mutex
	stale map[Slot]map[string]struct{}
}

// New builds a coordinator over the given slots.
func New(slots Slots, logger *zap.Logger, opts ...Option) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Coordinator{
		sanitizer:       DefaultSanitizer,
		logger:          logger,
		breakerFailures: 5,
		breakerTimeout:  30 * time.Second,
		stale:           map[Slot]map[string]struct{}{},
	}
	for _, opt := range opts {
		opt(c)
	}

	for _, slot := range Priority {
		backend := slots[slot]
		if backend == nil {
			continue
		}
		g := c.guard(slot, backend)
		c.slots = append(c.slots, g)
		if slot == SlotDurable {
			c.durable = g
		}
	}

	if len(c.slots) == 0 {
		logger.Warn("No storage backends configured, persistence disabled")
	}
	return c
}

func (c *Coordinator) guard(slot Slot, backend storage.Backend) *guarded {
	metrics := c.metrics
	logger := c.logger
	breaker := resilience.New(string(slot), resilience.Settings{
		Timeout:      c.breakerTimeout,
		ReadyToTrip:  resilience.ConsecutiveFailures(c.breakerFailures),
		IsSuccessful: healthy,
		OnStateChange: func(name string, from, to resilience.State) {
			logger.Warn("Storage breaker state changed",
				zap.String("slot", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			metrics.SetBreakerState(name, int(to))
		},
	})
	metrics.SetBreakerState(string(slot), int(resilience.StateClosed))
	return &guarded{slot: slot, backend: backend, breaker: breaker, metrics: metrics}
}

// healthy reports whether err says nothing bad about the backend itself.
func healthy(err error) bool {
	return err == nil ||
		errors.Is(err, storage.ErrNotFound) ||
		errors.Is(err, storage.ErrQuotaExceeded) ||
		errors.Is(err, storage.ErrInvalidInput)
}

// Save sanitizes value and writes it to every slot. A value the sanitizer
// drops entirely is refused and nothing is written. The result is true when
// the durable slot committed and verified the write, or, with no durable
// slot configured, when any slot committed it.
func (c *Coordinator) Save(ctx context.Context, key string, value any) bool {
	if key == "" {
		c.logger.Warn("Refusing to save empty key")
		return false
	}

	clean, ok := c.sanitizer.Sanitize(value)
	if !ok {
		c.logger.Warn("Refusing to save value dropped by sanitizer", zap.String("key", key))
		return false
	}
	payload, err := canonical.Marshal(clean)
	if err != nil {
		c.logger.Warn("Value is not serializable", zap.String("key", key), zap.Error(err))
		return false
	}

	durableOK, anyOK := false, false
	for _, g := range c.slots {
		var err error
		if g == c.durable {
			err = c.saveDurable(ctx, g, key, payload)
		} else {
			err = g.set(ctx, key, payload)
		}

		if err != nil {
			c.markStale(g.slot, key)
			c.logger.Warn("Storage write failed",
				zap.String("slot", string(g.slot)),
				zap.String("backend", g.backend.Name()),
				zap.String("key", key),
				zap.Error(err),
			)
			continue
		}

		c.clearStale(g.slot, key)
		anyOK = true
		if g == c.durable {
			durableOK = true
		}
	}

	if c.durable != nil {
		return durableOK
	}
	return anyOK
}

// saveDurable backs up the current value, writes the new one and reads it
// back for comparison.
func (c *Coordinator) saveDurable(ctx context.Context, g *guarded, key string, payload []byte) error {
	prev, err := g.get(ctx, key)
	switch {
	case err == nil && !isNull(prev):
		if berr := g.set(ctx, BackupKey(key), prev); berr != nil {
			c.metrics.RecordBackup(monitoring.StatusError)
			c.logger.Warn("Backup before overwrite failed",
				zap.String("key", key),
				zap.Error(berr),
			)
		} else {
			c.metrics.RecordBackup(monitoring.StatusSuccess)
		}
	case err != nil && !errors.Is(err, storage.ErrNotFound):
		c.logger.Debug("Could not read previous value for backup",
			zap.String("key", key),
			zap.Error(err),
		)
	}

	if err := g.set(ctx, key, payload); err != nil {
		return err
	}

	got, err := g.get(ctx, key)
	if err != nil {
		return fmt.Errorf("read back: %w", err)
	}
	if !sameJSON(got, payload) {
		c.metrics.RecordVerification(monitoring.StatusMismatch)
		return ErrVerification
	}
	c.metrics.RecordVerification(monitoring.StatusSuccess)
	return nil
}

// Load returns the first non-null value for key in priority order. A
// stored null and a missing key both report (nil, false).
func (c *Coordinator) Load(ctx context.Context, key string) (any, bool) {
	raw, ok := c.LoadRaw(ctx, key)
	if !ok {
		return nil, false
	}
	var v any
	if err := sonic.ConfigStd.Unmarshal(raw, &v); err != nil {
		c.logger.Warn("Stored value is not valid JSON", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return v, true
}

// LoadInto decodes the loaded value into out.
func (c *Coordinator) LoadInto(ctx context.Context, key string, out any) bool {
	raw, ok := c.LoadRaw(ctx, key)
	if !ok {
		return false
	}
	if err := sonic.ConfigStd.Unmarshal(raw, out); err != nil {
		c.logger.Warn("Stored value does not decode", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

// LoadRaw is Load without decoding.
func (c *Coordinator) LoadRaw(ctx context.Context, key string) ([]byte, bool) {
	if key == "" {
		return nil, false
	}

	var deferred []*guarded
	for _, g := range c.slots {
		if c.isStale(g.slot, key) {
			deferred = append(deferred, g)
			continue
		}
		if raw, ok := c.loadFrom(ctx, g, key); ok {
			return raw, true
		}
	}

	// Nothing fresher anywhere: fall back to slots whose last write failed
	for _, g := range deferred {
		if raw, ok := c.loadFrom(ctx, g, key); ok {
			return raw, true
		}
	}
	return nil, false
}

func (c *Coordinator) loadFrom(ctx context.Context, g *guarded, key string) ([]byte, bool) {
	raw, err := g.get(ctx, key)
	switch {
	case err == nil:
		if isNull(raw) {
			return nil, false
		}
		return raw, true
	case errors.Is(err, storage.ErrNotFound):
		return nil, false
	}

	c.logger.Warn("Storage read failed",
		zap.String("slot", string(g.slot)),
		zap.String("backend", g.backend.Name()),
		zap.String("key", key),
		zap.Error(err),
	)
	if g != c.durable {
		return nil, false
	}

	backup, berr := g.get(ctx, BackupKey(key))
	if berr != nil || isNull(backup) {
		return nil, false
	}
	c.logger.Info("Recovered value from backup", zap.String("key", key))
	return backup, true
}

// Delete removes key from every slot. It reports whether all of them
// succeeded. Backups are kept.
func (c *Coordinator) Delete(ctx context.Context, key string) bool {
	if key == "" {
		return false
	}
	ok := true
	for _, g := range c.slots {
		if err := g.delete(ctx, key); err != nil {
			ok = false
			c.logger.Warn("Storage delete failed",
				zap.String("slot", string(g.slot)),
				zap.String("key", key),
				zap.Error(err),
			)
			continue
		}
		c.clearStale(g.slot, key)
	}
	return ok
}

// Clear empties every slot. It reports whether all of them succeeded.
func (c *Coordinator) Clear(ctx context.Context) bool {
	ok := true
	for _, g := range c.slots {
		if err := g.clear(ctx); err != nil {
			ok = false
			c.logger.Warn("Storage clear failed",
				zap.String("slot", string(g.slot)),
				zap.Error(err),
			)
			continue
		}
		c.mu.Lock()
		delete(c.stale, g.slot)
		c.mu.Unlock()
	}
	return ok
}

// Status reports every configured slot.
func (c *Coordinator) Status() []BackendStatus {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]BackendStatus, 0, len(c.slots))
	for _, g := range c.slots {
		st := BackendStatus{
			Slot:      g.slot,
			Backend:   g.backend.Name(),
			State:     g.breaker.State().String(),
			StaleKeys: len(c.stale[g.slot]),
		}
		if err := g.breaker.LastError(); err != nil {
			st.LastError = err.Error()
		}
		out = append(out, st)
	}
	return out
}

// Healthy reports whether the durable slot, or any slot when there is no
// durable one, is accepting requests.
func (c *Coordinator) Healthy() bool {
	if c.durable != nil {
		return c.durable.breaker.State() != resilience.StateOpen
	}
	for _, g := range c.slots {
		if g.breaker.State() != resilience.StateOpen {
			return true
		}
	}
	return false
}

// Watch forwards external changes from every backend that can observe them.
func (c *Coordinator) Watch(ctx context.Context, fn func(storage.Change)) error {
	var errs []error
	for _, g := range c.slots {
		w, ok := g.backend.(storage.Watcher)
		if !ok {
			continue
		}
		if err := w.Watch(ctx, fn); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", g.slot, err))
		}
	}
	return errors.Join(errs...)
}

// Close closes every backend.
func (c *Coordinator) Close() error {
	var errs []error
	for _, g := range c.slots {
		if err := g.backend.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", g.slot, err))
		}
	}
	return errors.Join(errs...)
}

func (c *Coordinator) markStale(slot Slot, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys, ok := c.stale[slot]
	if !ok {
		keys = map[string]struct{}{}
		c.stale[slot] = keys
	}
	keys[key] = struct{}{}
}

func (c *Coordinator) clearStale(slot Slot, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.stale[slot], key)
}

func (c *Coordinator) isStale(slot Slot, key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.stale[slot][key]
	return ok
}

func isNull(raw []byte) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// sameJSON compares two documents after canonical re-encoding.
func sameJSON(a, b []byte) bool {
	if bytes.Equal(a, b) {
		return true
	}
	var va, vb any
	if err := canonical.Unmarshal(a, &va); err != nil {
		return false
	}
	if err := canonical.Unmarshal(b, &vb); err != nil {
		return false
	}
	ca, err := canonical.Marshal(va)
	if err != nil {
		return false
	}
	cb, err := canonical.Marshal(vb)
	if err != nil {
		return false
	}
	return bytes.Equal(ca, cb)
}
