package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	calls := 0
	s := New(Options{}, zerolog.Nop())
	err := s.Run(ctx, func(ctx context.Context) time.Duration {
		calls++
		if calls == 3 {
			cancel()
		}
		return time.Millisecond
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("取消后应返回 context.Canceled, 实际 %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 steps, got %d", calls)
	}
}

func TestRunInterruptsLongWait(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	s := New(Options{}, zerolog.Nop())
	start := time.Now()
	err := s.Run(ctx, func(ctx context.Context) time.Duration { return time.Hour })
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("unexpected error %v", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Fatal("wait should be interrupted by context")
	}
}

func TestStartupDelayHonoursCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := New(Options{StartupDelay: time.Hour}, zerolog.Nop())
	called := false
	err := s.Run(ctx, func(ctx context.Context) time.Duration {
		called = true
		return 0
	})
	if !errors.Is(err, context.Canceled) || called {
		t.Fatalf("step must not run after cancellation: err=%v called=%v", err, called)
	}
}
