package breaker

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestBreaker_ClosedOnSuccess(t *testing.T) {
	b := New(Config{FailureThreshold: 3, SuccessThreshold: 2, OpenTimeout: 50 * time.Millisecond})

	if b.State() != Closed {
		t.Fatalf("expected Closed, got %s", b.State())
	}

	err := b.Call(context.Background(), func(ctx context.Context) error { return nil })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.State() != Closed {
		t.Fatalf("expected Closed after success, got %s", b.State())
	}
}

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	b := New(Config{FailureThreshold: 3, SuccessThreshold: 2, OpenTimeout: 50 * time.Millisecond})
	failing := func(ctx context.Context) error { return errors.New("boom") }

	for i := 0; i < 3; i++ {
		if err := b.Call(context.Background(), failing); err == nil {
			t.Fatalf("call %d: expected error", i)
		}
	}

	if b.State() != Open {
		t.Fatalf("expected Open, got %s", b.State())
	}

	if err := b.Call(context.Background(), func(ctx context.Context) error { return nil }); err != ErrOpen {
		t.Fatalf("expected ErrOpen, got %v", err)
	}
}

func TestBreaker_HalfOpenRecovery(t *testing.T) {
	b := New(Config{FailureThreshold: 2, SuccessThreshold: 2, OpenTimeout: 20 * time.Millisecond})
	failing := func(ctx context.Context) error { return errors.New("boom") }
	ok := func(ctx context.Context) error { return nil }

	for i := 0; i < 2; i++ {
		_ = b.Call(context.Background(), failing)
	}
	if b.State() != Open {
		t.Fatalf("expected Open, got %s", b.State())
	}

	time.Sleep(30 * time.Millisecond)

	if err := b.Call(context.Background(), ok); err != nil {
		t.Fatalf("half-open call should be allowed: %v", err)
	}
	if b.State() != HalfOpen {
		t.Fatalf("expected HalfOpen after one success, got %s", b.State())
	}

	if err := b.Call(context.Background(), ok); err != nil {
		t.Fatalf("second half-open call should be allowed: %v", err)
	}
	if b.State() != Closed {
		t.Fatalf("expected Closed after SuccessThreshold successes, got %s", b.State())
	}
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	b := New(Config{FailureThreshold: 1, SuccessThreshold: 2, OpenTimeout: 10 * time.Millisecond})
	failing := func(ctx context.Context) error { return errors.New("boom") }

	_ = b.Call(context.Background(), failing)
	if b.State() != Open {
		t.Fatalf("expected Open, got %s", b.State())
	}

	time.Sleep(20 * time.Millisecond)
	_ = b.Call(context.Background(), failing)

	if b.State() != Open {
		t.Fatalf("expected Open after half-open failure, got %s", b.State())
	}
}

func TestManager_GetCreatesAndReuses(t *testing.T) {
	m := NewManager()
	b1 := m.Get("kraken")
	b2 := m.Get("kraken")
	if b1 != b2 {
		t.Fatal("expected the same breaker instance for the same venue id")
	}

	m.Remove("kraken")
	b3 := m.Get("kraken")
	if b3 == b1 {
		t.Fatal("expected a fresh breaker after Remove")
	}
}
