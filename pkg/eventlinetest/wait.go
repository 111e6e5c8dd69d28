package eventlinetest

import (
	"testing"
	"time"
)

// Eventually polls cond until it returns true or timeout elapses, then
// fails the test. The engine dispatches on its own worker goroutine, so
// assertions about dispatch effects need to poll.
func Eventually(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v: %s", timeout, msg)
}

// Never asserts cond stays false for the whole duration.
func Never(t *testing.T, duration time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(duration)
	for time.Now().Before(deadline) {
		if cond() {
			t.Fatalf("condition unexpectedly met: %s", msg)
		}
		time.Sleep(2 * time.Millisecond)
	}
}
