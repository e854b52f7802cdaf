package rate

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisLimiter(t *testing.T, cfg Config) (*Limiter, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return New(NewRedisStore(rdb, ""), cfg), mr
}

func TestAllowWithinBudget(t *testing.T) {
	l, _ := newRedisLimiter(t, Config{MaxAttempts: 3, Window: time.Minute})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		d, err := l.Allow(ctx, "alice")
		if err != nil {
			t.Fatalf("Allow error: %v", err)
		}
		if !d.Allowed {
			t.Fatalf("attempt %d unexpectedly denied", i+1)
		}
	}

	d, err := l.Allow(ctx, "alice")
	if err != nil {
		t.Fatalf("Allow error: %v", err)
	}
	if d.Allowed {
		t.Fatal("expected attempt over budget to be denied")
	}
	if d.RetryAfter <= 0 || d.RetryAfter > time.Minute {
		t.Fatalf("unexpected RetryAfter %v", d.RetryAfter)
	}
}

func TestAllowKeysAreIndependent(t *testing.T) {
	l, _ := newRedisLimiter(t, Config{MaxAttempts: 1, Window: time.Minute})
	ctx := context.Background()

	if d, _ := l.Allow(ctx, "alice"); !d.Allowed {
		t.Fatal("first attempt for alice denied")
	}
	if d, _ := l.Allow(ctx, "alice"); d.Allowed {
		t.Fatal("second attempt for alice allowed")
	}
	if d, _ := l.Allow(ctx, "bob"); !d.Allowed {
		t.Fatal("bob should not share alice's budget")
	}
}

func TestWindowElapses(t *testing.T) {
	l, mr := newRedisLimiter(t, Config{MaxAttempts: 1, Window: time.Minute})
	ctx := context.Background()

	if d, _ := l.Allow(ctx, "alice"); !d.Allowed {
		t.Fatal("first attempt denied")
	}
	if d, _ := l.Allow(ctx, "alice"); d.Allowed {
		t.Fatal("expected denial within window")
	}

	mr.FastForward(time.Minute + time.Second)

	if d, _ := l.Allow(ctx, "alice"); !d.Allowed {
		t.Fatal("expected a fresh window after expiry")
	}
}

func TestDeniedAttemptsStillCount(t *testing.T) {
	l, mr := newRedisLimiter(t, Config{MaxAttempts: 1, Window: time.Minute})
	ctx := context.Background()

	l.Allow(ctx, "alice")
	mr.FastForward(45 * time.Second)
	// Denied attempt inside the original window must not open a new one.
	if d, _ := l.Allow(ctx, "alice"); d.Allowed {
		t.Fatal("expected denial")
	}
	mr.FastForward(20 * time.Second)
	if d, _ := l.Allow(ctx, "alice"); !d.Allowed {
		t.Fatal("expected window anchored at first attempt to have elapsed")
	}
}

func TestResetClearsBudget(t *testing.T) {
	l, _ := newRedisLimiter(t, Config{MaxAttempts: 1, Window: time.Minute})
	ctx := context.Background()

	l.Allow(ctx, "alice")
	if d, _ := l.Allow(ctx, "alice"); d.Allowed {
		t.Fatal("expected denial before reset")
	}

	if err := l.Reset(ctx, "alice"); err != nil {
		t.Fatalf("Reset error: %v", err)
	}

	if d, _ := l.Allow(ctx, "alice"); !d.Allowed {
		t.Fatal("expected a fresh budget after reset")
	}
}

func TestFailClosedOnStoreError(t *testing.T) {
	l, mr := newRedisLimiter(t, Config{MaxAttempts: 5, Window: time.Minute})
	ctx := context.Background()

	mr.Close()

	d, err := l.Allow(ctx, "alice")
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
	if d.Allowed {
		t.Fatal("expected denial when the store is unreachable")
	}
}

func TestMemoryStoreWindow(t *testing.T) {
	store := NewMemoryStore()
	clock := time.Unix(1_700_000_000, 0)
	store.now = func() time.Time { return clock }

	l := New(store, Config{MaxAttempts: 2, Window: time.Minute})
	ctx := context.Background()

	if d, _ := l.Allow(ctx, "alice"); !d.Allowed {
		t.Fatal("first attempt denied")
	}
	if d, _ := l.Allow(ctx, "alice"); !d.Allowed {
		t.Fatal("second attempt denied")
	}
	d, _ := l.Allow(ctx, "alice")
	if d.Allowed {
		t.Fatal("expected third attempt to be denied")
	}
	if d.RetryAfter != time.Minute {
		t.Fatalf("expected full window RetryAfter, got %v", d.RetryAfter)
	}

	clock = clock.Add(time.Minute)
	if d, _ := l.Allow(ctx, "alice"); !d.Allowed {
		t.Fatal("expected a fresh window after elapse")
	}
}

func TestConcurrentAllowNeverExceedsBudget(t *testing.T) {
	const max = 5
	l := New(NewMemoryStore(), Config{MaxAttempts: max, Window: time.Minute})
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		allowed atomic.Int64
	)
	for i := 0; i < max*3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := l.Allow(ctx, "alice")
			if err != nil {
				t.Errorf("Allow error: %v", err)
				return
			}
			if d.Allowed {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := allowed.Load(); got != max {
		t.Fatalf("expected exactly %d allowed, got %d", max, got)
	}
}

func TestConfigDefaults(t *testing.T) {
	l := New(NewMemoryStore(), Config{})
	if l.MaxAttempts() != DefaultMaxAttempts {
		t.Fatalf("expected default max attempts, got %d", l.MaxAttempts())
	}
	if l.Window() != DefaultWindow {
		t.Fatalf("expected default window, got %v", l.Window())
	}
}
