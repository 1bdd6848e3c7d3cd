package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestNewLimiter_ZeroRate(t *testing.T) {
	l := NewLimiter(0)

	start := time.Now()
	for i := 0; i < 100; i++ {
		if err := l.Wait(context.Background()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed > 10*time.Millisecond {
		t.Errorf("zero rate should not block, took %v", elapsed)
	}
}

func TestLimiter_Wait(t *testing.T) {
	l := NewLimiter(1000)

	start := time.Now()
	if err := l.Wait(context.Background()); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Errorf("wait took too long: %v", elapsed)
	}
}

func TestLimiter_ContextCancelled(t *testing.T) {
	l := NewLimiter(1)
	_ = l.Wait(context.Background()) // exhaust the burst

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := l.Wait(ctx); err == nil {
		t.Error("expected error for cancelled context")
	}
}

func TestLimiter_Throttles(t *testing.T) {
	l := NewLimiter(10)

	start := time.Now()
	// first 10 are the burst, the next 5 need ~500ms
	for i := 0; i < 15; i++ {
		if err := l.Wait(context.Background()); err != nil {
			t.Fatalf("wait failed: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed < 400*time.Millisecond {
		t.Errorf("rate limiting doesn't appear to be working, elapsed: %v", elapsed)
	}
}

func TestLimiter_FractionalRate(t *testing.T) {
	l := NewLimiter(0.5)
	if l.Rate() != 0.5 {
		t.Errorf("expected rate 0.5, got %v", l.Rate())
	}
	if err := l.Wait(context.Background()); err != nil {
		t.Fatalf("first wait should use the burst: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := l.Wait(ctx); err == nil {
		t.Error("second wait should need ~2s and hit the deadline")
	}
}

func TestLimiter_SetRateToZero(t *testing.T) {
	l := NewLimiter(1)
	_ = l.Wait(context.Background())
	l.SetRate(0)

	start := time.Now()
	if err := l.Wait(context.Background()); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 10*time.Millisecond {
		t.Errorf("zero rate should not block, took %v", elapsed)
	}
}

func TestLimiter_ConcurrentWait(t *testing.T) {
	l := NewLimiter(1000)
	ctx := context.Background()

	done := make(chan struct{}, 10)
	for i := 0; i < 10; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 10; j++ {
				if err := l.Wait(ctx); err != nil {
					return
				}
			}
		}()
	}
	for i := 0; i < 10; i++ {
		<-done
	}
}
