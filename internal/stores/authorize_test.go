package stores

import (
	"context"
	"crypto/sha256"
	"errors"
	"sync"
	"testing"
	"time"
)

func testRequest(now time.Time) *AuthorizationRequest {
	return &AuthorizationRequest{
		ClientID:        "app1",
		RedirectURI:     "https://app.test/cb",
		CodeChallenge:   "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM",
		ChallengeMethod: "S256",
		Scope:           "read write",
		ExpiresAt:       now.Add(5 * time.Minute).Unix(),
	}
}

func testCode(now time.Time) *AuthorizationCode {
	return &AuthorizationCode{
		ClientID:        "app1",
		RedirectURI:     "https://app.test/cb",
		CodeChallenge:   "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM",
		ChallengeMethod: "S256",
		SubjectID:       "u42",
		Scope:           "read",
		ExpiresAt:       now.Add(60 * time.Second).Unix(),
	}
}

func TestConsumeRequestSingleUse(t *testing.T) {
	rdb, _ := newTestRedis(t)
	store := NewAuthorizeStore(rdb, "t")
	ctx := context.Background()
	now := time.Now()

	if err := store.SaveRequest(ctx, "state-1", testRequest(now), time.Minute); err != nil {
		t.Fatalf("save request: %v", err)
	}

	req, err := store.ConsumeRequest(ctx, "state-1", now)
	if err != nil {
		t.Fatalf("consume request: %v", err)
	}
	if req.ClientID != "app1" || req.RedirectURI != "https://app.test/cb" {
		t.Fatalf("unexpected record: %+v", req)
	}
	if req.Scope != "read write" || req.ChallengeMethod != "S256" {
		t.Fatalf("unexpected record: %+v", req)
	}

	if _, err := store.ConsumeRequest(ctx, "state-1", now); !errors.Is(err, ErrRequestNotFound) {
		t.Fatalf("second consume: got %v, want ErrRequestNotFound", err)
	}
}

func TestConsumeRequestExpired(t *testing.T) {
	rdb, _ := newTestRedis(t)
	store := NewAuthorizeStore(rdb, "t")
	ctx := context.Background()
	now := time.Now()

	if err := store.SaveRequest(ctx, "state-2", testRequest(now), time.Minute); err != nil {
		t.Fatalf("save request: %v", err)
	}

	late := now.Add(6 * time.Minute)
	if _, err := store.ConsumeRequest(ctx, "state-2", late); !errors.Is(err, ErrRequestExpired) {
		t.Fatalf("expired consume: got %v, want ErrRequestExpired", err)
	}

	// Expiry deletes the record, so a retry sees not-found.
	if _, err := store.ConsumeRequest(ctx, "state-2", late); !errors.Is(err, ErrRequestNotFound) {
		t.Fatalf("post-expiry consume: got %v, want ErrRequestNotFound", err)
	}
}

func TestConsumeRequestConcurrentSingleWinner(t *testing.T) {
	rdb, _ := newTestRedis(t)
	store := NewAuthorizeStore(rdb, "t")
	ctx := context.Background()
	now := time.Now()

	if err := store.SaveRequest(ctx, "state-3", testRequest(now), time.Minute); err != nil {
		t.Fatalf("save request: %v", err)
	}

	const n = 8
	var wg sync.WaitGroup
	wg.Add(n)
	results := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, err := store.ConsumeRequest(ctx, "state-3", now)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	success := 0
	for err := range results {
		if err == nil {
			success++
		} else if !errors.Is(err, ErrRequestNotFound) {
			t.Fatalf("unexpected consume error: %v", err)
		}
	}
	if success != 1 {
		t.Fatalf("expected exactly one consume winner, got %d", success)
	}
}

func TestRedeemCodeOnce(t *testing.T) {
	rdb, _ := newTestRedis(t)
	store := NewAuthorizeStore(rdb, "t")
	ctx := context.Background()
	now := time.Now()
	hash := sha256.Sum256([]byte("c_xyz"))

	if err := store.SaveCode(ctx, hash, testCode(now), time.Minute); err != nil {
		t.Fatalf("save code: %v", err)
	}

	code, replayFamily, err := store.RedeemCode(ctx, hash, now, time.Hour)
	if err != nil {
		t.Fatalf("redeem code: %v", err)
	}
	if replayFamily != "" {
		t.Fatalf("unexpected replay family %q on first redemption", replayFamily)
	}
	if code.SubjectID != "u42" || code.Scope != "read" {
		t.Fatalf("unexpected record: %+v", code)
	}

	if err := store.BindFamily(ctx, hash, "fam-1"); err != nil {
		t.Fatalf("bind family: %v", err)
	}

	_, replayFamily, err = store.RedeemCode(ctx, hash, now, time.Hour)
	if !errors.Is(err, ErrCodeAlreadyUsed) {
		t.Fatalf("second redeem: got %v, want ErrCodeAlreadyUsed", err)
	}
	if replayFamily != "fam-1" {
		t.Fatalf("replay family = %q, want fam-1", replayFamily)
	}
}

func TestRedeemCodeExpired(t *testing.T) {
	rdb, _ := newTestRedis(t)
	store := NewAuthorizeStore(rdb, "t")
	ctx := context.Background()
	now := time.Now()
	hash := sha256.Sum256([]byte("c_old"))

	if err := store.SaveCode(ctx, hash, testCode(now), time.Minute); err != nil {
		t.Fatalf("save code: %v", err)
	}

	if _, _, err := store.RedeemCode(ctx, hash, now.Add(2*time.Minute), time.Hour); !errors.Is(err, ErrCodeExpired) {
		t.Fatalf("expired redeem: got %v, want ErrCodeExpired", err)
	}
}

func TestRedeemCodeUnknown(t *testing.T) {
	rdb, _ := newTestRedis(t)
	store := NewAuthorizeStore(rdb, "t")

	hash := sha256.Sum256([]byte("never-issued"))
	if _, _, err := store.RedeemCode(context.Background(), hash, time.Now(), time.Hour); !errors.Is(err, ErrCodeNotFound) {
		t.Fatalf("unknown redeem: got %v, want ErrCodeNotFound", err)
	}
}

func TestRedeemCodeConcurrentSingleWinner(t *testing.T) {
	rdb, _ := newTestRedis(t)
	store := NewAuthorizeStore(rdb, "t")
	ctx := context.Background()
	now := time.Now()
	hash := sha256.Sum256([]byte("c_race"))

	if err := store.SaveCode(ctx, hash, testCode(now), time.Minute); err != nil {
		t.Fatalf("save code: %v", err)
	}

	const n = 8
	var wg sync.WaitGroup
	wg.Add(n)
	results := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, _, err := store.RedeemCode(ctx, hash, now, time.Hour)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	success := 0
	for err := range results {
		if err == nil {
			success++
		} else if !errors.Is(err, ErrCodeAlreadyUsed) {
			t.Fatalf("unexpected redeem error: %v", err)
		}
	}
	if success != 1 {
		t.Fatalf("expected exactly one redeem winner, got %d", success)
	}
}

func TestBindFamilyMissingCodeIsNoOp(t *testing.T) {
	rdb, mr := newTestRedis(t)
	store := NewAuthorizeStore(rdb, "t")

	hash := sha256.Sum256([]byte("gone"))
	if err := store.BindFamily(context.Background(), hash, "fam-9"); err != nil {
		t.Fatalf("bind family on missing code: %v", err)
	}
	if len(mr.Keys()) != 0 {
		t.Fatalf("bind must not resurrect keys, have %v", mr.Keys())
	}
}
