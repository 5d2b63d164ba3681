// Package logging provides structured logging using uber/zap.
//
// Production mode writes JSON, development mode writes colored console
// output. Components receive a named *zap.Logger derived from the process
// logger; the level is atomic so debug mode can be switched on while
// running.
//
// Example Usage:
//
//	logger := logging.NewDefault()
//	logger.Info("Host starting", zap.String("port", "8177"))
//	logger.SetDebug(true)
package logging
