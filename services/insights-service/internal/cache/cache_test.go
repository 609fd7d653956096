package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestWrapCachesWithinTTL(t *testing.T) {
	c := New()
	calls := 0
	produce := func(context.Context) (int, error) {
		calls++
		return 42, nil
	}

	v, err := Wrap(context.Background(), c, "k", time.Minute, produce)
	if err != nil || v != 42 {
		t.Fatalf("first call: got %d, %v", v, err)
	}
	v, err = Wrap(context.Background(), c, "k", time.Minute, produce)
	if err != nil || v != 42 {
		t.Fatalf("second call: got %d, %v", v, err)
	}
	if calls != 1 {
		t.Fatalf("expected producer to run once, ran %d times", calls)
	}
}

func TestWrapExpiry(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := NewWithClock(func() time.Time { return now })

	calls := 0
	produce := func(context.Context) (string, error) {
		calls++
		return "v", nil
	}

	if _, err := Wrap(context.Background(), c, "k", 10*time.Second, produce); err != nil {
		t.Fatalf("wrap: %v", err)
	}
	now = now.Add(9 * time.Second)
	if _, err := Wrap(context.Background(), c, "k", 10*time.Second, produce); err != nil {
		t.Fatalf("wrap: %v", err)
	}
	if calls != 1 {
		t.Fatalf("entry expired early, producer ran %d times", calls)
	}

	now = now.Add(2 * time.Second)
	if _, err := Wrap(context.Background(), c, "k", 10*time.Second, produce); err != nil {
		t.Fatalf("wrap: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected recompute after expiry, producer ran %d times", calls)
	}
}

func TestWrapZeroTTLNeverExpires(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := NewWithClock(func() time.Time { return now })

	calls := 0
	produce := func(context.Context) (int, error) {
		calls++
		return 1, nil
	}
	if _, err := Wrap(context.Background(), c, "k", 0, produce); err != nil {
		t.Fatalf("wrap: %v", err)
	}
	now = now.Add(1000 * time.Hour)
	if _, err := Wrap(context.Background(), c, "k", 0, produce); err != nil {
		t.Fatalf("wrap: %v", err)
	}
	if calls != 1 {
		t.Fatalf("zero-ttl entry expired, producer ran %d times", calls)
	}
}

func TestWrapErrorNotCached(t *testing.T) {
	c := New()
	calls := 0
	boom := errors.New("reader down")
	produce := func(context.Context) (int, error) {
		calls++
		if calls == 1 {
			return 0, boom
		}
		return 7, nil
	}

	if _, err := Wrap(context.Background(), c, "k", time.Minute, produce); !errors.Is(err, boom) {
		t.Fatalf("expected producer error, got %v", err)
	}
	if c.Len() != 0 {
		t.Fatalf("failed computation was cached")
	}
	v, err := Wrap(context.Background(), c, "k", time.Minute, produce)
	if err != nil || v != 7 {
		t.Fatalf("retry after error: got %d, %v", v, err)
	}
}

func TestKeyCanonical(t *testing.T) {
	a := Key("overview", map[string]any{"company": "c1", "from": "2026-01-01", "to": "2026-01-31"})
	b := Key("overview", map[string]any{"to": "2026-01-31", "company": "c1", "from": "2026-01-01"})
	if a != b {
		t.Fatalf("same params produced different keys:\n%s\n%s", a, b)
	}
	if a == Key("overview", map[string]any{"company": "c2", "from": "2026-01-01", "to": "2026-01-31"}) {
		t.Fatalf("different params collided")
	}
	if Key("overview", nil) != "overview" {
		t.Fatalf("empty params should yield bare prefix")
	}
}

func TestInvalidate(t *testing.T) {
	c := New()
	calls := 0
	produce := func(context.Context) (int, error) {
		calls++
		return calls, nil
	}
	if _, err := Wrap(context.Background(), c, "k", time.Minute, produce); err != nil {
		t.Fatalf("wrap: %v", err)
	}
	c.Invalidate("k")
	v, err := Wrap(context.Background(), c, "k", time.Minute, produce)
	if err != nil || v != 2 {
		t.Fatalf("expected recompute after invalidate, got %d, %v", v, err)
	}
}
