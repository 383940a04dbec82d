package storage

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

var (
	ErrNotFound          = errors.New("storage: key not found")
	ErrQuotaExceeded     = errors.New("storage: quota exceeded")
	ErrClosed            = errors.New("storage: backend closed")
	ErrInvalidInput      = errors.New("storage: invalid input")
	ErrUnsupportedScheme = errors.New("storage: unsupported scheme")
)

const defaultOpTimeout = 5 * time.Second

// Backend is one physical key-value store. Values are JSON documents held
// as raw bytes; Get returns ErrNotFound for a missing key.
type Backend interface {
	Name() string
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
	Close() error
}

// Change describes an update made to a backend by someone else.
type Change struct {
	Backend string
	Path    string
	At      time.Time
}

// Watcher is implemented by backends that can report external changes.
type Watcher interface {
	Watch(ctx context.Context, fn func(Change)) error
}

// Options carries settings shared by every factory.
type Options struct {
	DataDir       string
	EncryptionKey string
	KeyPrefix     string
	QuotaBytes    int
	OpTimeout     time.Duration
	Defaults      map[string][]byte
	Logger        *zap.Logger
}

func (o Options) opTimeout() time.Duration {
	if o.OpTimeout <= 0 {
		return defaultOpTimeout
	}
	return o.OpTimeout
}

func (o Options) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}

// DefaultDocument returns the initial contents of the durable store.
func DefaultDocument() map[string][]byte {
	return map[string][]byte{
		"services":         []byte(`[]`),
		"activeTab":        []byte(`""`),
		"sidebarCollapsed": []byte(`false`),
		"isDarkMode":       []byte(`false`),
		"windowBounds":     []byte(`{"height":900,"width":1400}`),
		"sessions":         []byte(`{}`),
	}
}

func validKey(key string) error {
	if key == "" {
		return ErrInvalidInput
	}
	return nil
}
