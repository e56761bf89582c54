// Package instrument wraps operations with duration and failure logging.
// The wrappers observe and re-raise: an error or panic is logged with its
// operation name and then propagated unchanged, so callers keep their own
// error handling.
package instrument

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"logkit/internal/logging"
)

// Timed runs op and logs how long it took. Durations above threshold log a
// warning instead of a debug line; failures log an error with the elapsed
// time. The operation's error is returned unchanged. A threshold of zero
// disables the slow-operation warning.
func Timed(ctx context.Context, logger *slog.Logger, name string, threshold time.Duration, op func(context.Context) error) error {
	start := time.Now()
	err := op(ctx)
	elapsed := time.Since(start)

	switch {
	case err != nil:
		logger.ErrorContext(ctx, fmt.Sprintf("%s failed after %s: %v", name, elapsed.Round(time.Millisecond), err))
	case threshold > 0 && elapsed > threshold:
		logger.WarnContext(ctx, fmt.Sprintf("%s took %s, over the %s threshold", name, elapsed.Round(time.Millisecond), threshold))
	default:
		logger.DebugContext(ctx, fmt.Sprintf("%s completed in %s", name, elapsed.Round(time.Millisecond)))
	}
	return err
}

// Observed runs op and logs any failure before propagating it. Errors are
// logged at ERROR and returned unchanged; panics are logged at CRITICAL with
// a stack trace and re-raised.
func Observed(ctx context.Context, logger *slog.Logger, name string, op func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Log(ctx, logging.LevelCritical,
				fmt.Sprintf("%s panicked: %v\n%s", name, r, debug.Stack()))
			panic(r)
		}
	}()

	if err = op(ctx); err != nil {
		logger.ErrorContext(ctx, fmt.Sprintf("%s failed: %v", name, err))
	}
	return err
}
