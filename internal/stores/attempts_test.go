package stores

import (
	"context"
	"sync"
	"testing"
	"time"
)

const (
	testWindow    = 15 * time.Minute
	testThreshold = 5
	testLock      = 30 * time.Minute
)

func recordOne(ctx context.Context, t *testing.T, store *AttemptStore, key string) *FailureOutcome {
	t.Helper()
	out, err := store.RecordFailure(ctx, key, testWindow, testThreshold, testLock)
	if err != nil {
		t.Fatalf("record failure: %v", err)
	}
	return out
}

func TestThresholdLocks(t *testing.T) {
	rdb, _ := newTestRedis(t)
	store := NewAttemptStore(rdb, "t")
	ctx := context.Background()

	for i := 1; i < testThreshold; i++ {
		out := recordOne(ctx, t, store, "userA")
		if out.Locked {
			t.Fatalf("locked early at attempt %d", i)
		}
		if out.Count != int64(i) {
			t.Fatalf("count = %d, want %d", out.Count, i)
		}
	}

	out := recordOne(ctx, t, store, "userA")
	if !out.Locked {
		t.Fatal("expected threshold attempt to lock")
	}
	if out.LockedFor != testLock {
		t.Fatalf("locked for %v, want %v", out.LockedFor, testLock)
	}

	remaining, err := store.CheckLock(ctx, "userA")
	if err != nil {
		t.Fatalf("check lock: %v", err)
	}
	if remaining <= 0 || remaining > testLock {
		t.Fatalf("remaining lock = %v", remaining)
	}

	// Counter was reset when the lock was set.
	count, err := store.FailureCount(ctx, "userA")
	if err != nil {
		t.Fatalf("failure count: %v", err)
	}
	if count != 0 {
		t.Fatalf("count after lock = %d, want 0", count)
	}
}

func TestLockExpires(t *testing.T) {
	rdb, mr := newTestRedis(t)
	store := NewAttemptStore(rdb, "t")
	ctx := context.Background()

	for i := 0; i < testThreshold; i++ {
		recordOne(ctx, t, store, "userA")
	}

	mr.FastForward(testLock + time.Second)

	remaining, err := store.CheckLock(ctx, "userA")
	if err != nil {
		t.Fatalf("check lock: %v", err)
	}
	if remaining != 0 {
		t.Fatalf("expected lock to expire, remaining %v", remaining)
	}
}

func TestWindowExpiryResetsCount(t *testing.T) {
	rdb, mr := newTestRedis(t)
	store := NewAttemptStore(rdb, "t")
	ctx := context.Background()

	for i := 0; i < testThreshold-1; i++ {
		recordOne(ctx, t, store, "userA")
	}

	mr.FastForward(testWindow + time.Second)

	out := recordOne(ctx, t, store, "userA")
	if out.Locked {
		t.Fatal("stale window must not contribute to lockout")
	}
	if out.Count != 1 {
		t.Fatalf("count after window expiry = %d, want 1", out.Count)
	}
}

func TestResetClearsCounterAndLock(t *testing.T) {
	rdb, _ := newTestRedis(t)
	store := NewAttemptStore(rdb, "t")
	ctx := context.Background()

	for i := 0; i < testThreshold; i++ {
		recordOne(ctx, t, store, "userA")
	}

	if err := store.Reset(ctx, "userA"); err != nil {
		t.Fatalf("reset: %v", err)
	}

	remaining, err := store.CheckLock(ctx, "userA")
	if err != nil {
		t.Fatalf("check lock: %v", err)
	}
	if remaining != 0 {
		t.Fatalf("expected reset to clear lock, remaining %v", remaining)
	}

	out := recordOne(ctx, t, store, "userA")
	if out.Locked || out.Count != 1 {
		t.Fatalf("post-reset outcome = %+v", out)
	}
}

func TestKeysAreIndependent(t *testing.T) {
	rdb, _ := newTestRedis(t)
	store := NewAttemptStore(rdb, "t")
	ctx := context.Background()

	for i := 0; i < testThreshold; i++ {
		recordOne(ctx, t, store, "userA")
	}

	remaining, err := store.CheckLock(ctx, "userB")
	if err != nil {
		t.Fatalf("check lock: %v", err)
	}
	if remaining != 0 {
		t.Fatal("lock must not leak across account keys")
	}
}

func TestConcurrentFailuresCountExactly(t *testing.T) {
	rdb, _ := newTestRedis(t)
	store := NewAttemptStore(rdb, "t")
	ctx := context.Background()

	const n = 20
	var wg sync.WaitGroup
	wg.Add(n)
	outcomes := make(chan *FailureOutcome, n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			out, err := store.RecordFailure(ctx, "userA", testWindow, testThreshold, testLock)
			if err != nil {
				t.Error(err)
				return
			}
			outcomes <- out
		}()
	}
	wg.Wait()
	close(outcomes)

	locked := 0
	for out := range outcomes {
		if out.Locked {
			locked++
		}
	}
	// Every threshold crossing locks; with the counter reset on lock, n=20
	// and threshold 5 cross exactly four times regardless of interleaving.
	if locked != n/testThreshold {
		t.Fatalf("locked %d times, want %d", locked, n/testThreshold)
	}
}
