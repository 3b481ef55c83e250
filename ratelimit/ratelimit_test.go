package ratelimit

import (
	"testing"
	"time"
)

func TestAllowWithinWindow(t *testing.T) {
	l := New()
	base := time.Unix(1000, 0)

	if !l.Allow("tok", 1, time.Second, base) {
		t.Fatal("first request should be allowed")
	}
	if l.Allow("tok", 1, time.Second, base.Add(500*time.Millisecond)) {
		t.Fatal("second request within the same window should be rejected")
	}
	if !l.Allow("tok", 1, time.Second, base.Add(1100*time.Millisecond)) {
		t.Fatal("request after the window elapses should be allowed")
	}
}

func TestRetryAfterIsNonNegative(t *testing.T) {
	l := New()
	base := time.Unix(2000, 0)
	l.Allow("tok", 1, time.Second, base)
	ra := l.RetryAfter("tok", time.Second, base.Add(200*time.Millisecond))
	if ra < 0 {
		t.Fatalf("expected non-negative retry_after, got %f", ra)
	}
}
