package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestRunFiresRepeatedly(t *testing.T) {
	s := New(Options{Interval: 5 * time.Millisecond}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ticks := 0
	err := s.Run(ctx, func(ctx context.Context, tick time.Time) error {
		ticks++
		if ticks >= 3 {
			cancel()
		}
		return nil
	})

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if ticks < 3 {
		t.Fatalf("expected at least 3 ticks, got %d", ticks)
	}
}

func TestRunSurvivesTickErrors(t *testing.T) {
	s := New(Options{Interval: 5 * time.Millisecond}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ticks := 0
	err := s.Run(ctx, func(ctx context.Context, tick time.Time) error {
		ticks++
		if ticks >= 3 {
			cancel()
			return nil
		}
		return errors.New("cycle failed")
	})

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if ticks < 3 {
		t.Fatalf("failing ticks must not stop the loop, got %d ticks", ticks)
	}
}

func TestRunStopsBeforeFirstTickOnCancel(t *testing.T) {
	s := New(Options{Interval: time.Hour}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Run(ctx, func(ctx context.Context, tick time.Time) error {
		t.Fatal("tick must not fire after cancellation")
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRunHonoursStartupDelay(t *testing.T) {
	s := New(Options{Interval: time.Hour, StartupDelay: time.Hour}, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := s.Run(ctx, func(ctx context.Context, tick time.Time) error {
		t.Fatal("tick must not fire during startup delay")
		return nil
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context.DeadlineExceeded, got %v", err)
	}
}

func TestNextTickAlignment(t *testing.T) {
	base := time.Date(2026, 9, 1, 12, 0, 17, 0, time.UTC)
	s := New(Options{Interval: 30 * time.Second, AlignToStart: true, Now: func() time.Time { return base }}, zerolog.Nop())

	next := s.nextTick(base)
	want := time.Date(2026, 9, 1, 12, 0, 30, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("expected aligned tick %s, got %s", want, next)
	}

	unaligned := New(Options{Interval: 30 * time.Second}, zerolog.Nop())
	if got := unaligned.nextTick(base); !got.Equal(base.Add(30 * time.Second)) {
		t.Fatalf("unaligned tick should be now+interval, got %s", got)
	}
}

func TestNewPanicsOnBadInterval(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for non-positive interval")
		}
	}()
	New(Options{Interval: 0}, zerolog.Nop())
}
