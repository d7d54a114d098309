package testutil

import (
	"context"
	"testing"
	"time"
)

// Context returns a context that is canceled when the test ends or when dur
// elapses, whichever comes first.
func Context(t testing.TB, dur time.Duration) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), dur)
	t.Cleanup(cancel)
	return ctx
}
