package persistence

import (
	"context"
	"errors"
	"sync"

	"github.com/GriffinCanCode/TextNexus/backend/internal/providers/storage"
)

var errDisk = errors.New("disk on fire")

// flaky wraps a memory backend with switchable failures.
type flaky struct {
	*storage.Memory
	name string

	mu          sync.Mutex
	failGet     bool
	failSet     bool
	failSetKeys map[string]bool
	failDelete  bool
	failClear   bool
	mangle      bool
	gets        int
	sets        int
}

func newFlaky(name string) *flaky {
	return &flaky{
		Memory:      storage.NewMemory(storage.Options{}),
		name:        name,
		failSetKeys: map[string]bool{},
	}
}

func (f *flaky) Name() string { return f.name }

func (f *flaky) set(fn func(f *flaky)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func (f *flaky) Get(ctx context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	f.gets++
	fail, mangle := f.failGet, f.mangle
	f.mu.Unlock()
	if fail {
		return nil, errDisk
	}
	v, err := f.Memory.Get(ctx, key)
	if err == nil && mangle {
		return []byte(`{"mangled":true}`), nil
	}
	return v, err
}

func (f *flaky) Set(ctx context.Context, key string, value []byte) error {
	f.mu.Lock()
	f.sets++
	fail := f.failSet || f.failSetKeys[key]
	f.mu.Unlock()
	if fail {
		return errDisk
	}
	return f.Memory.Set(ctx, key, value)
}

func (f *flaky) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	fail := f.failDelete
	f.mu.Unlock()
	if fail {
		return errDisk
	}
	return f.Memory.Delete(ctx, key)
}

func (f *flaky) Clear(ctx context.Context) error {
	f.mu.Lock()
	fail := f.failClear
	f.mu.Unlock()
	if fail {
		return errDisk
	}
	return f.Memory.Clear(ctx)
}

// raw reads straight from the wrapped store.
func (f *flaky) raw(key string) (string, bool) {
	v, err := f.Memory.Get(context.Background(), key)
	if err != nil {
		return "", false
	}
	return string(v), true
}

type fixture struct {
	durable, document, local, session *flaky
	coord                             *Coordinator
}

func newFixture(opts ...Option) *fixture {
	fx := &fixture{
		durable:  newFlaky("durable-fake"),
		document: newFlaky("document-fake"),
		local:    newFlaky("local-fake"),
		session:  newFlaky("session-fake"),
	}
	fx.coord = New(Slots{
		SlotDurable:  fx.durable,
		SlotDocument: fx.document,
		SlotLocal:    fx.local,
		SlotSession:  fx.session,
	}, nil, opts...)
	return fx
}

func (fx *fixture) all() []*flaky {
	return []*flaky{fx.durable, fx.document, fx.local, fx.session}
}
