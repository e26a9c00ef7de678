package http

import (
	"testing"
	"time"
)

func TestLoginRateLimiterWindow(t *testing.T) {
	rl := newLoginRateLimiter(3, 50*time.Millisecond)

	for i := 0; i < 3; i++ {
		if !rl.Allow("10.0.0.1") {
			t.Fatalf("attempt %d blocked too early", i)
		}
	}
	if rl.Allow("10.0.0.1") {
		t.Fatal("fourth attempt should be blocked")
	}
	if !rl.Allow("10.0.0.2") {
		t.Fatal("other address must not be affected")
	}

	time.Sleep(60 * time.Millisecond)
	if !rl.Allow("10.0.0.1") {
		t.Fatal("attempt after window should pass")
	}
}
