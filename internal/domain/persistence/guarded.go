package persistence

import (
	"context"
	"errors"

	"github.com/GriffinCanCode/TextNexus/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/TextNexus/backend/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/TextNexus/backend/internal/providers/storage"
)

// guarded runs every call to a backend through its breaker and records it.
type guarded struct {
	slot    Slot
	backend storage.Backend
	breaker *resilience.Breaker
	metrics *monitoring.Metrics
}

func (g *guarded) get(ctx context.Context, key string) ([]byte, error) {
	timer := monitoring.NewTimer(g.metrics, string(g.slot), "get")
	v, err := g.breaker.Execute(func() (any, error) {
		return g.backend.Get(ctx, key)
	})
	timer.Stop(outcome(err))
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

func (g *guarded) set(ctx context.Context, key string, value []byte) error {
	return g.do(ctx, "set", func(ctx context.Context) error {
		return g.backend.Set(ctx, key, value)
	})
}

func (g *guarded) delete(ctx context.Context, key string) error {
	return g.do(ctx, "delete", func(ctx context.Context) error {
		return g.backend.Delete(ctx, key)
	})
}

func (g *guarded) clear(ctx context.Context) error {
	return g.do(ctx, "clear", g.backend.Clear)
}

func (g *guarded) do(ctx context.Context, op string, fn func(context.Context) error) error {
	timer := monitoring.NewTimer(g.metrics, string(g.slot), op)
	err := g.breaker.Do(func() error { return fn(ctx) })
	timer.Stop(outcome(err))
	return err
}

func outcome(err error) string {
	switch {
	case err == nil:
		return monitoring.StatusSuccess
	case errors.Is(err, storage.ErrNotFound):
		return monitoring.StatusNotFound
	case errors.Is(err, resilience.ErrCircuitOpen), errors.Is(err, resilience.ErrTooManyRequests):
		return monitoring.StatusSkipped
	default:
		return monitoring.StatusError
	}
}
