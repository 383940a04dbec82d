/*
Package storage provides the physical key-value backends behind the storage
coordinator.

Backends are built from DSNs so each coordinator slot can be pointed at a
different engine without code changes:

	secure://textnexus-data.json   encrypted document file (durable slot)
	sqlite://textnexus.db          embedded SQL database (document slot)
	postgres://user@host/db        Postgres (document slot)
	redis://localhost:6379/0       Redis (any slot)
	file://local-storage.json      prefixed JSON file with quota (local slot)
	memory://                      process-lifetime map with quota (session slot)

Relative paths are resolved against Options.DataDir. An empty DSN or "none"
disables a slot.

Every backend stores raw JSON bytes and reports a missing key as
ErrNotFound. Backends never interpret values; sanitizing and verification
belong to the coordinator.
*/
package storage
