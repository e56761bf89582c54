// Package logging implements the context-routed sink registry at the heart
// of logkit.
//
// A Manager owns every configured sink. Its slog handler stamps each record
// with the trace ID and service role carried by the caller's context, then
// offers the stamped record to every sink's filter: per-service info and
// error files, an optional colorized console sink, custom sinks registered
// by key, and optional structured event sinks. File writes are enqueued and
// drained by per-sink goroutines so a slow filesystem never stalls the
// caller.
//
// Setup is idempotent: re-running it closes and replaces the whole sink set,
// so log volume never compounds across repeated initialization.
package logging
