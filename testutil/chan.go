package testutil

import (
	"context"
	"testing"
)

// TryReceive waits for one value from c. It fails the test if ctx ends
// first. A closed channel yields the zero value.
//
// Call it only from the test goroutine.
func TryReceive[T any](ctx context.Context, t testing.TB, c <-chan T) T {
	t.Helper()
	select {
	case v := <-c:
		return v
	case <-ctx.Done():
		t.Fatalf("timed out receiving from channel: %v", ctx.Err())
	}
	var zero T
	return zero
}
