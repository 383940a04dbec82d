// Package main is the entry point for the TextNexus backend server.
//
// The backend sits next to the desktop shell that hosts the messaging
// services and owns everything that outlives a single webview:
//
//	Shell (render clients) ⇄ Go Backend → storage backends
//	                                   → notification sinks
//
// The server provides:
//   - REST API for persisted app state and session snapshots
//   - WebSocket stream for UI events and page snapshots
//   - Activity detection and notification routing
//   - Service catalog and per-service user agents
//   - Rate limiting and metrics
//
// Configuration:
//   - Optional TOML file (-config or TEXTNEXUS_CONFIG)
//   - Environment variables (12-factor)
//   - CLI flags (override both)
//
// Usage:
//
//	# Production mode
//	./server -port 8000 -data-dir ~/.config/TextNexus
//
//	# Development mode (colored logs, debug level)
//	./server -dev
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown, flushing session snapshots
package main
