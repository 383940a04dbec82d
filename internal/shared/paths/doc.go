// Package paths defines where the backend keeps its files.
//
// Everything lives under one data directory, by default
// <user config dir>/TextNexus:
//
//	TextNexus/
//	  ├── textnexus-data.json   (durable slot, encrypted)
//	  ├── textnexus.db          (document slot)
//	  ├── local-storage.json    (local slot)
//	  ├── services.yaml         (optional catalog overrides)
//	  ├── detector.js           (optional activity detector)
//	  └── logs/backend.log      (rotated logs, when enabled)
//
// Configured paths that are relative are resolved against the data
// directory with Resolve.
package paths
