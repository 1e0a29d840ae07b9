package httpmiddleware

import (
	"testing"
	"time"
)

func TestRateLimiterBurstThenDeny(t *testing.T) {
	l := NewRateLimiter(60, 3)
	now := time.Now()

	for i := 0; i < 3; i++ {
		if !l.allow("1.2.3.4", now) {
			t.Fatalf("request %d inside burst denied", i+1)
		}
	}
	if l.allow("1.2.3.4", now) {
		t.Fatal("request over burst allowed")
	}
}

func TestRateLimiterRefill(t *testing.T) {
	l := NewRateLimiter(60, 1)
	now := time.Now()

	if !l.allow("1.2.3.4", now) {
		t.Fatal("first request denied")
	}
	if l.allow("1.2.3.4", now) {
		t.Fatal("second immediate request allowed")
	}
	// 60/min refills one token per second.
	if !l.allow("1.2.3.4", now.Add(1100*time.Millisecond)) {
		t.Fatal("request after refill denied")
	}
}

func TestRateLimiterKeysAreIndependent(t *testing.T) {
	l := NewRateLimiter(60, 1)
	now := time.Now()

	if !l.allow("1.1.1.1", now) {
		t.Fatal("first key denied")
	}
	if !l.allow("2.2.2.2", now) {
		t.Fatal("second key throttled by first key's bucket")
	}
}
