// Package logging builds the portal's zap logger.
//
// Every logger tees into up to three sinks:
//   - The configured output paths (stdout by default), JSON in production and
//     colored console lines in development
//   - A rotating JSON file when FileDir is set (lumberjack)
//   - An in-memory ring of recent entries, served by GET /api/logs
//
// Example Usage:
//
//	logger, err := logging.New(logging.DefaultConfig())
//	logger.Info("Server starting", zap.String("port", "8000"))
//	recent := logger.Recent().Get(50, "error")
package logging
