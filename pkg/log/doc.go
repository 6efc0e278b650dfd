/*
Package log provides structured logging for cvld using zerolog.

The log package wraps the zerolog library to provide JSON-structured logging
with component-specific child loggers and configurable log levels. Console
output (the default) is meant for interactive use; pass JSONOutput for
machine-readable logs.

Usage:

	log.Init(log.Config{Level: log.InfoLevel})
	logger := log.WithComponent("coordinator")
	logger.Info().Str("key", key).Msg("object updated")
*/
package log
