package request

import (
	"context"
	"testing"
	"time"
)

func TestProviderBackoff(t *testing.T) {
	b := NewProviderBackoff(10*time.Millisecond, 40*time.Millisecond)

	if n, next := b.State("p"); n != 0 || !next.IsZero() {
		t.Fatalf("initial state = %d, %v", n, next)
	}

	for i := 0; i < 5; i++ {
		b.RecordFailure("p")
	}
	n, next := b.State("p")
	if n != 5 {
		t.Errorf("failures = %d, want 5", n)
	}
	// capped at maxDelay + 10% jitter
	if until := time.Until(next); until > 45*time.Millisecond {
		t.Errorf("delay %v exceeds cap", until)
	}

	for i := 0; i < 5; i++ {
		b.RecordSuccess("p")
	}
	if n, next := b.State("p"); n != 0 || !next.IsZero() {
		t.Errorf("after recovery = %d, %v", n, next)
	}
}

func TestProviderBackoff_WaitHonoursContext(t *testing.T) {
	b := NewProviderBackoff(time.Second, time.Second)
	b.RecordFailure("p")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := b.Wait(ctx, "p"); err == nil {
		t.Error("expected context error")
	}
	if err := b.Wait(context.Background(), "other"); err != nil {
		t.Errorf("unrelated provider waited: %v", err)
	}
}
