// Package logging provides the slog handler used by fishbowl.
//
// The handler is installed as the process default before command-line flags
// are parsed and buffers everything it receives. After parsing, the CLI sets
// the level, formatter, and stream, then flushes. Records below the final
// level are discarded at flush time, so debug output emitted during startup
// only appears when debug mode was requested.
//
// Example usage:
//
//	handler := logging.New()
//	slog.SetDefault(slog.New(handler))
//
//	// ... parse flags ...
//
//	handler.SetLevel(slog.LevelDebug)
//	handler.SetFormatter(logging.NewPrettyFormatter(true))
//	handler.SetStream(os.Stderr)
//	handler.Flush()
package logging
