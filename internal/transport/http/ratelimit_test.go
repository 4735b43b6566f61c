package http

import (
	"testing"
	"time"
)

func TestRateLimiterBurstAndRefill(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := newRateLimiter(2)
	rl.now = func() time.Time { return now }

	if !rl.allow() || !rl.allow() {
		t.Fatal("burst of two should pass")
	}
	if rl.allow() {
		t.Fatal("third call without refill should be limited")
	}

	now = now.Add(30 * time.Second)
	if !rl.allow() {
		t.Fatal("one token should refill after half a minute")
	}
	if rl.allow() {
		t.Fatal("only one token should have refilled")
	}

	now = now.Add(time.Minute)
	if !rl.allow() || !rl.allow() {
		t.Fatal("a full minute should restore the burst")
	}
}

func TestRateLimiterDisabled(t *testing.T) {
	rl := newRateLimiter(0)
	for range 1000 {
		if !rl.allow() {
			t.Fatal("limit 0 disables limiting")
		}
	}
	if newRateLimiter(-1) != nil {
		t.Fatal("negative limit should disable limiting")
	}
}
