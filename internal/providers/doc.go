// Package providers groups the adapters between the domain packages and
// the outside world.
//
// Available Providers:
//   - Storage: key-value backends (encrypted file, SQLite, Postgres, Redis,
//     prefixed file, memory) opened from DSNs
//   - Notify: notification sinks (render clients, Web Push, webhooks) and
//     the UI event relay
//
// Providers never decide policy. Fallback order, verification and
// notification suppression live in the domain packages that use them.
package providers
