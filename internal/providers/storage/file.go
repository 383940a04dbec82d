package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/bytedance/sonic"
)

// File is a localStorage-style backend: a flat JSON object of prefixed
// string entries persisted to one file, with a byte quota.
type File struct {
	path string

	mu     sync.RWMutex
	store  *entries
	closed bool
}

// NewFile opens (or creates on first write) the file at path.
func NewFile(path string, opts Options) (*File, error) {
	if path == "" {
		return nil, ErrInvalidInput
	}
	f := &File{
		path:  path,
		store: newEntries(opts.KeyPrefix, opts.QuotaBytes),
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return f, nil
	case err != nil:
		return nil, err
	}

	raw := map[string]string{}
	if len(data) > 0 {
		if err := sonic.ConfigStd.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	f.store.load(raw)
	return f, nil
}

func (f *File) Name() string { return "file" }

func (f *File) Get(_ context.Context, key string) ([]byte, error) {
	if err := validKey(key); err != nil {
		return nil, err
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return nil, ErrClosed
	}
	v, ok := f.store.get(key)
	if !ok {
		return nil, ErrNotFound
	}
	return v, nil
}

func (f *File) Set(_ context.Context, key string, value []byte) error {
	if err := validKey(key); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrClosed
	}

	prev, had := f.store.get(key)
	if err := f.store.set(key, value); err != nil {
		return err
	}
	if err := f.flush(); err != nil {
		if had {
			_ = f.store.set(key, prev)
		} else {
			f.store.remove(key)
		}
		return err
	}
	return nil
}

func (f *File) Delete(_ context.Context, key string) error {
	if err := validKey(key); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrClosed
	}
	if _, ok := f.store.get(key); !ok {
		return nil
	}
	f.store.remove(key)
	return f.flush()
}

func (f *File) Clear(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrClosed
	}
	f.store.clear()
	return f.flush()
}

func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// flush must be called with mu held.
func (f *File) flush() error {
	data, err := sonic.ConfigStd.Marshal(f.store.data)
	if err != nil {
		return err
	}
	return writeFileAtomic(f.path, data, 0o644)
}

func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, perm); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
