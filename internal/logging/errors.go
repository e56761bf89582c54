package logging

import "errors"

// ErrNotConfigured is returned when a sink is registered before Setup has
// run.
var ErrNotConfigured = errors.New("logging not configured: call Setup first")
