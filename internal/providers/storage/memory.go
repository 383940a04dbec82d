package storage

import (
	"context"
	"strings"
	"sync"
)

// entries is a prefixed string map with a byte quota, the model shared by
// the browser-style local and session slots.
type entries struct {
	prefix string
	quota  int
	data   map[string]string
	used   int
}

func newEntries(prefix string, quota int) *entries {
	return &entries{prefix: prefix, quota: quota, data: map[string]string{}}
}

func (e *entries) get(key string) ([]byte, bool) {
	v, ok := e.data[e.prefix+key]
	if !ok {
		return nil, false
	}
	return []byte(v), true
}

func (e *entries) set(key string, value []byte) error {
	k := e.prefix + key
	delta := len(k) + len(value)
	if old, ok := e.data[k]; ok {
		delta -= len(k) + len(old)
	}
	if e.quota > 0 && e.used+delta > e.quota {
		return ErrQuotaExceeded
	}
	e.data[k] = string(value)
	e.used += delta
	return nil
}

func (e *entries) remove(key string) {
	k := e.prefix + key
	if old, ok := e.data[k]; ok {
		e.used -= len(k) + len(old)
		delete(e.data, k)
	}
}

// clear drops only keys carrying this prefix, like a namespaced
// localStorage.clear().
func (e *entries) clear() {
	for k, v := range e.data {
		if strings.HasPrefix(k, e.prefix) {
			e.used -= len(k) + len(v)
			delete(e.data, k)
		}
	}
}

func (e *entries) load(raw map[string]string) {
	e.data = make(map[string]string, len(raw))
	e.used = 0
	for k, v := range raw {
		e.data[k] = v
		e.used += len(k) + len(v)
	}
}

// Memory is a process-lifetime store with sessionStorage semantics.
type Memory struct {
	mu     sync.RWMutex
	store  *entries
	closed bool
}

// NewMemory creates an empty in-memory backend.
func NewMemory(opts Options) *Memory {
	return &Memory{store: newEntries(opts.KeyPrefix, opts.QuotaBytes)}
}

func (m *Memory) Name() string { return "memory" }

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	if err := validKey(key); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	v, ok := m.store.get(key)
	if !ok {
		return nil, ErrNotFound
	}
	return v, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte) error {
	if err := validKey(key); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	return m.store.set(key, value)
}

func (m *Memory) Delete(_ context.Context, key string) error {
	if err := validKey(key); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.store.remove(key)
	return nil
}

func (m *Memory) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.store.clear()
	return nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
