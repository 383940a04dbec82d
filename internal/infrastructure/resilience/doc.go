/*
Package resilience provides a circuit breaker used to skip storage backends
that keep failing.

# Overview

Each storage slot owned by the coordinator is wrapped in a Breaker. A slot
whose backend fails repeatedly is treated as unavailable until the breaker
half-opens, so a dead database or a full disk costs one fast error per call
instead of a timeout.

# Usage

	breaker := resilience.New("storage.document", resilience.Settings{
		Timeout:     30 * time.Second,
		ReadyToTrip: resilience.ConsecutiveFailures(5),
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, storage.ErrNotFound)
		},
		OnStateChange: func(name string, from, to resilience.State) {
			logger.Warn("breaker", zap.String("name", name), zap.Stringer("to", to))
		},
	})

	err := breaker.Do(func() error {
		return backend.Set(ctx, key, data)
	})

# States

	Closed --[failures]-> Open --[timeout]-> Half-Open --[successes]-> Closed
	                                           |
	                                    [failure]
	                                           |
	                                           v
	                                         Open
*/
package resilience
