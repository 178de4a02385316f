package testutil

import "errors"

// ErrSimulated is a sentinel error for failing sources and handlers in tests.
var ErrSimulated = errors.New("simulated error for testing")
