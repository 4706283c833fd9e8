// Package logging provides structured logging using uber/zap.
//
// Two modes are offered:
//   - Production: JSON output for machine parsing
//   - Development: Colored console output for human readability
//
// Child processes started by terminal buffers write their merged output
// through Logger.Writer at debug level and into a Ring, which keeps the
// most recent bytes for diagnostics.
//
// Example Usage:
//
//	logger := logging.NewDefault()
//	logger.Info("Server starting", zap.String("port", "8700"))
//	out := io.MultiWriter(logging.NewRing(0), logger.Writer(zap.DebugLevel))
package logging
