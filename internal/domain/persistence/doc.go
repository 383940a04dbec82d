/*
Package persistence coordinates the storage slots into one advisory store.

Every Save is sanitized and written to all configured slots independently.
The durable slot additionally keeps the previous value under
"backup-<key>" and verifies each write by reading it back. Load walks the
slots in Priority order (durable, document, local, session) and returns the
first non-null value; a stored null is the same as a missing key.

A slot whose last write of a key failed is consulted for that key only after
every other slot, so a failed durable write never hides a newer value held
elsewhere. Each slot sits behind its own circuit breaker.

No operation returns an error. Failures are logged, counted and reduced to
the boolean results:

	coord := persistence.New(persistence.Slots{
		persistence.SlotDurable: secure,
		persistence.SlotSession: storage.NewMemory(storage.Options{}),
	}, logger.Named("storage"))

	if !coord.Save(ctx, "workspaces", workspaces) {
		// durable slot did not commit; siblings may have
	}
	v, ok := coord.Load(ctx, "workspaces")
*/
package persistence
