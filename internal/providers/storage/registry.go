package storage

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Factory builds a backend from the part of a DSN after "scheme://".
type Factory func(target string, opts Options) (Backend, error)

var factoryRegistry = struct {
	mu        sync.RWMutex
	factories map[string]Factory
}{
	factories: map[string]Factory{},
}

func init() {
	Register("memory", func(_ string, opts Options) (Backend, error) {
		return NewMemory(opts), nil
	})
	Register("file", func(target string, opts Options) (Backend, error) {
		path, _ := resolve(target, opts)
		return NewFile(path, opts)
	})
	Register("secure", func(target string, opts Options) (Backend, error) {
		path, _ := resolve(target, opts)
		return NewSecure(path, opts)
	})
	Register("sqlite", func(target string, opts Options) (Backend, error) {
		path, query := resolve(target, opts)
		return NewSQLite(path, query, opts)
	})
	postgres := func(target string, opts Options) (Backend, error) {
		return NewPostgres("postgres://"+target, opts)
	}
	Register("postgres", postgres)
	Register("postgresql", postgres)
	Register("redis", func(target string, opts Options) (Backend, error) {
		return NewRedis("redis://"+target, opts)
	})
	Register("rediss", func(target string, opts Options) (Backend, error) {
		return NewRedis("rediss://"+target, opts)
	})
}

// Register installs a factory for a DSN scheme, replacing any previous one.
func Register(scheme string, factory Factory) {
	scheme = normalizeScheme(scheme)
	if scheme == "" || factory == nil {
		return
	}
	factoryRegistry.mu.Lock()
	defer factoryRegistry.mu.Unlock()
	factoryRegistry.factories[scheme] = factory
}

// Schemes lists the registered DSN schemes.
func Schemes() []string {
	factoryRegistry.mu.RLock()
	defer factoryRegistry.mu.RUnlock()
	out := make([]string, 0, len(factoryRegistry.factories))
	for scheme := range factoryRegistry.factories {
		out = append(out, scheme)
	}
	sort.Strings(out)
	return out
}

// Open builds the backend described by dsn. An empty DSN or "none" means
// the slot is disabled and yields (nil, nil).
func Open(dsn string, opts Options) (Backend, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" || strings.EqualFold(dsn, "none") {
		return nil, nil
	}

	scheme, target, ok := strings.Cut(dsn, "://")
	if !ok {
		return nil, fmt.Errorf("%w: %q has no scheme", ErrInvalidInput, dsn)
	}

	factory, ok := lookup(scheme)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedScheme, scheme)
	}

	backend, err := factory(target, opts)
	if err != nil {
		return nil, fmt.Errorf("open %s backend: %w", normalizeScheme(scheme), err)
	}
	return backend, nil
}

func lookup(scheme string) (Factory, bool) {
	scheme = normalizeScheme(scheme)
	factoryRegistry.mu.RLock()
	defer factoryRegistry.mu.RUnlock()
	factory, ok := factoryRegistry.factories[scheme]
	return factory, ok
}

func normalizeScheme(scheme string) string {
	return strings.ToLower(strings.TrimSpace(scheme))
}

// resolve splits a DSN target into a file path, relative to the data dir
// unless absolute, and its query string.
func resolve(target string, opts Options) (string, string) {
	path, query, _ := strings.Cut(target, "?")
	if path != "" && !filepath.IsAbs(path) && opts.DataDir != "" {
		path = filepath.Join(opts.DataDir, path)
	}
	return path, query
}
