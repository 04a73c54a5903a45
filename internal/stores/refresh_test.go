package stores

import (
	"context"
	"crypto/sha256"
	"errors"
	"sync"
	"testing"
	"time"
)

func secretHash(label string) [32]byte {
	return sha256.Sum256([]byte(label))
}

func newFamily(ctx context.Context, t *testing.T, store *RefreshStore, familyID string, first [32]byte) {
	t.Helper()
	fam := &Family{
		FamilyID:  familyID,
		SubjectID: "u42",
		ClientID:  "app1",
		Scope:     "read",
	}
	if err := store.CreateFamily(ctx, fam, first, 24*time.Hour, time.Now()); err != nil {
		t.Fatalf("create family: %v", err)
	}
}

func TestRotateAdvancesGeneration(t *testing.T) {
	rdb, _ := newTestRedis(t)
	store := NewRefreshStore(rdb, "t")
	ctx := context.Background()
	now := time.Now()

	gen0 := secretHash("gen0")
	gen1 := secretHash("gen1")
	newFamily(ctx, t, store, "fam-1", gen0)

	rot, err := store.Rotate(ctx, gen0, gen1, 24*time.Hour, time.Hour, now)
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if rot.FamilyID != "fam-1" || rot.Generation != 1 {
		t.Fatalf("rotation = %+v", rot)
	}
	if rot.SubjectID != "u42" || rot.ClientID != "app1" || rot.Scope != "read" {
		t.Fatalf("rotation identity = %+v", rot)
	}

	// The new record rotates in turn.
	gen2 := secretHash("gen2")
	rot, err = store.Rotate(ctx, gen1, gen2, 24*time.Hour, time.Hour, now)
	if err != nil {
		t.Fatalf("second rotate: %v", err)
	}
	if rot.Generation != 2 {
		t.Fatalf("generation = %d, want 2", rot.Generation)
	}
}

func TestRotateReuseRevokesFamily(t *testing.T) {
	rdb, _ := newTestRedis(t)
	store := NewRefreshStore(rdb, "t")
	ctx := context.Background()
	now := time.Now()

	gen0 := secretHash("gen0")
	gen1 := secretHash("gen1")
	newFamily(ctx, t, store, "fam-1", gen0)

	if _, err := store.Rotate(ctx, gen0, gen1, 24*time.Hour, time.Hour, now); err != nil {
		t.Fatalf("rotate: %v", err)
	}

	// Presenting the spent generation again is a theft signal.
	if _, err := store.Rotate(ctx, gen0, secretHash("attacker"), 24*time.Hour, time.Hour, now); !errors.Is(err, ErrRefreshReused) {
		t.Fatalf("reuse rotate: got %v, want ErrRefreshReused", err)
	}

	fam, err := store.GetFamily(ctx, "fam-1")
	if err != nil {
		t.Fatalf("get family: %v", err)
	}
	if !fam.Revoked {
		t.Fatal("expected family to be revoked after reuse")
	}

	// The current generation is dead too: revocation cascades.
	if _, err := store.Rotate(ctx, gen1, secretHash("gen2"), 24*time.Hour, time.Hour, now); !errors.Is(err, ErrFamilyRevoked) {
		t.Fatalf("post-reuse rotate: got %v, want ErrFamilyRevoked", err)
	}
}

func TestRotateExpiredRecord(t *testing.T) {
	rdb, _ := newTestRedis(t)
	store := NewRefreshStore(rdb, "t")
	ctx := context.Background()
	now := time.Now()

	gen0 := secretHash("gen0")
	newFamily(ctx, t, store, "fam-1", gen0)

	late := now.Add(25 * time.Hour)
	if _, err := store.Rotate(ctx, gen0, secretHash("gen1"), 24*time.Hour, time.Hour, late); !errors.Is(err, ErrRefreshExpired) {
		t.Fatalf("expired rotate: got %v, want ErrRefreshExpired", err)
	}
}

func TestRotateUnknownToken(t *testing.T) {
	rdb, _ := newTestRedis(t)
	store := NewRefreshStore(rdb, "t")

	_, err := store.Rotate(context.Background(), secretHash("nope"), secretHash("next"), 24*time.Hour, time.Hour, time.Now())
	if !errors.Is(err, ErrRefreshNotFound) {
		t.Fatalf("unknown rotate: got %v, want ErrRefreshNotFound", err)
	}
}

func TestRevokeFamilyIdempotent(t *testing.T) {
	rdb, _ := newTestRedis(t)
	store := NewRefreshStore(rdb, "t")
	ctx := context.Background()

	gen0 := secretHash("gen0")
	newFamily(ctx, t, store, "fam-1", gen0)

	if err := store.RevokeFamily(ctx, "fam-1"); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if err := store.RevokeFamily(ctx, "fam-1"); err != nil {
		t.Fatalf("second revoke: %v", err)
	}
	if err := store.RevokeFamily(ctx, "never-existed"); err != nil {
		t.Fatalf("revoke of missing family: %v", err)
	}

	if _, err := store.Rotate(ctx, gen0, secretHash("gen1"), 24*time.Hour, time.Hour, time.Now()); !errors.Is(err, ErrFamilyRevoked) {
		t.Fatalf("post-revoke rotate: got %v, want ErrFamilyRevoked", err)
	}
}

func TestRotateConcurrentSingleWinner(t *testing.T) {
	rdb, _ := newTestRedis(t)
	store := NewRefreshStore(rdb, "t")
	ctx := context.Background()
	now := time.Now()

	gen0 := secretHash("gen0")
	newFamily(ctx, t, store, "fam-1", gen0)

	const n = 16
	var wg sync.WaitGroup
	wg.Add(n)
	results := make(chan error, n)
	for i := 0; i < n; i++ {
		next := secretHash("next-" + string(rune('a'+i)))
		go func() {
			defer wg.Done()
			_, err := store.Rotate(ctx, gen0, next, 24*time.Hour, time.Hour, now)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	success, reuse := 0, 0
	for err := range results {
		switch {
		case err == nil:
			success++
		case errors.Is(err, ErrRefreshReused), errors.Is(err, ErrFamilyRevoked):
			reuse++
		default:
			t.Fatalf("unexpected rotate error: %v", err)
		}
	}
	if success != 1 {
		t.Fatalf("expected exactly one rotation winner, got %d", success)
	}
	if reuse != n-1 {
		t.Fatalf("expected %d losers, got %d", n-1, reuse)
	}

	fam, err := store.GetFamily(ctx, "fam-1")
	if err != nil {
		t.Fatalf("get family: %v", err)
	}
	if !fam.Revoked {
		t.Fatal("expected family revoked after concurrent reuse")
	}
}
