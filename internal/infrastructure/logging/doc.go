// Package logging provides structured logging using uber/zap.
//
// This package offers two modes:
//   - Production: JSON output for machine parsing
//   - Development: Colored console output for human readability
//
// When Config.File is set, entries are also written as JSON to a rotating
// file managed by lumberjack.
//
// Components receive named children of the root logger:
//
//	logger := logging.NewDefault()
//	coord := persistence.New(slots, logger.Named("storage"))
//	logger.Error("Failed to open backend", zap.Error(err))
package logging
