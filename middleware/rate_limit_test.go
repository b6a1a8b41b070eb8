package middleware

import (
	"testing"
	"time"
)

func TestRateLimiterLocksAfterMaxAttempts(t *testing.T) {
	rl := NewRateLimiter(3, time.Minute, time.Minute)
	ip := "10.0.0.1"

	for i := 0; i < 3; i++ {
		allowed, _, _ := rl.Check(ip)
		if !allowed {
			t.Fatalf("attempt %d should be allowed", i+1)
		}
		rl.RecordAttempt(ip, false)
	}

	allowed, remaining, lock := rl.Check(ip)
	if allowed {
		t.Fatal("should be locked after max failed attempts")
	}
	if remaining != 0 {
		t.Fatalf("expected 0 remaining, got %d", remaining)
	}
	if lock <= 0 {
		t.Fatal("lock duration should be positive")
	}
}

func TestRateLimiterResetOnSuccess(t *testing.T) {
	rl := NewRateLimiter(3, time.Minute, time.Minute)
	ip := "10.0.0.2"

	rl.RecordAttempt(ip, false)
	rl.RecordAttempt(ip, false)
	rl.RecordAttempt(ip, true)

	_, remaining, _ := rl.Check(ip)
	if remaining != 3 {
		t.Fatalf("successful login should clear attempts, got %d remaining", remaining)
	}
}

func TestRateLimiterIsolatesIPs(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute, time.Minute)

	rl.RecordAttempt("10.0.0.3", false)
	if allowed, _, _ := rl.Check("10.0.0.3"); allowed {
		t.Fatal("10.0.0.3 should be locked")
	}
	if allowed, _, _ := rl.Check("10.0.0.4"); !allowed {
		t.Fatal("other IPs must be unaffected")
	}
}
