package signal

import "testing"

func TestRateLimiterBurst(t *testing.T) {
	rl := NewRateLimiter(1, 3)
	for i := 0; i < 3; i++ {
		if !rl.Allow("a") {
			t.Fatalf("call %d should pass", i)
		}
	}
	if rl.Allow("a") {
		t.Fatal("burst exceeded but allowed")
	}
	if !rl.Allow("b") {
		t.Fatal("sessions must not share a bucket")
	}
	rl.Forget("a")
	if !rl.Allow("a") {
		t.Fatal("forgotten session should start fresh")
	}
}

func TestRateLimiterDisabled(t *testing.T) {
	rl := NewRateLimiter(0, 0)
	for i := 0; i < 1000; i++ {
		if !rl.Allow("a") {
			t.Fatal("zero limit must allow everything")
		}
	}
}
