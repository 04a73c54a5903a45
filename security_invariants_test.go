package authcore

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/halverth/authcore/internal"
)

// Replaying a spent refresh token must revoke the whole family record, not
// just reject the call.
func TestSecurityInvariantRefreshReplayRevokesFamily(t *testing.T) {
	_, rdb := newTestRedis(t)
	engine := newTestEngine(t, rdb, nil, nil)
	ctx := context.Background()

	code := issueCode(t, engine, "user-1", "profile", "profile")
	pair, err := engine.RedeemCode(ctx, testClientID, code.Code, testRedirect, testVerifier)
	if err != nil {
		t.Fatalf("redeem failed: %v", err)
	}

	familyID, _, err := internal.DecodeRefreshToken(pair.RefreshToken)
	if err != nil {
		t.Fatalf("decode refresh failed: %v", err)
	}

	if _, err := engine.RotateRefreshToken(ctx, pair.RefreshToken); err != nil {
		t.Fatalf("first rotation failed: %v", err)
	}
	if _, err := engine.RotateRefreshToken(ctx, pair.RefreshToken); !errors.Is(err, ErrTokenReuseDetected) {
		t.Fatalf("expected ErrTokenReuseDetected, got %v", err)
	}

	fam, err := engine.refreshStore.GetFamily(ctx, familyID)
	if err != nil {
		t.Fatalf("GetFamily failed: %v", err)
	}
	if !fam.Revoked {
		t.Fatal("expected family record marked revoked")
	}
}

// Raw authorization codes and refresh secrets must never appear in Redis:
// everything single-use is stored by hash.
func TestSecurityInvariantRawSecretsNeverStored(t *testing.T) {
	mr, rdb := newTestRedis(t)
	engine := newTestEngine(t, rdb, nil, nil)
	ctx := context.Background()

	code := issueCode(t, engine, "user-1", "profile", "profile")
	pair, err := engine.RedeemCode(ctx, testClientID, code.Code, testRedirect, testVerifier)
	if err != nil {
		t.Fatalf("redeem failed: %v", err)
	}

	needles := []string{code.Code, pair.RefreshToken, pair.AccessToken}

	for _, key := range mr.Keys() {
		for _, needle := range needles {
			if strings.Contains(key, needle) {
				t.Fatalf("raw secret used as redis key: %q", key)
			}
		}
	}

	dump := mr.Dump()
	for _, needle := range needles {
		if strings.Contains(dump, needle) {
			t.Fatalf("raw secret stored in redis value: %q", needle[:8])
		}
	}
}

// The PKCE challenge is stored with the pending request and the code, never
// the verifier: the verifier only ever travels in the redeem call.
func TestSecurityInvariantVerifierNeverStored(t *testing.T) {
	mr, rdb := newTestRedis(t)
	engine := newTestEngine(t, rdb, nil, nil)

	issueCode(t, engine, "user-1", "profile", "profile")

	if strings.Contains(mr.Dump(), testVerifier) {
		t.Fatal("verifier must not be persisted")
	}
}

// Rotation bumps the generation monotonically within a family.
func TestSecurityInvariantGenerationMonotonic(t *testing.T) {
	_, rdb := newTestRedis(t)
	engine := newTestEngine(t, rdb, nil, nil)
	ctx := context.Background()

	code := issueCode(t, engine, "user-1", "profile", "profile")
	pair, err := engine.RedeemCode(ctx, testClientID, code.Code, testRedirect, testVerifier)
	if err != nil {
		t.Fatalf("redeem failed: %v", err)
	}

	var lastGen uint32
	token := pair.RefreshToken
	for i := 1; i <= 5; i++ {
		next, err := engine.RotateRefreshToken(ctx, token)
		if err != nil {
			t.Fatalf("rotation %d failed: %v", i, err)
		}
		res, err := engine.Introspect(ctx, next.AccessToken)
		if err != nil || !res.Active {
			t.Fatalf("introspect %d failed: %+v err=%v", i, res, err)
		}
		if res.Generation <= lastGen && i > 1 {
			t.Fatalf("generation did not advance: %d then %d", lastGen, res.Generation)
		}
		lastGen = res.Generation
		token = next.RefreshToken
	}
	if lastGen != 5 {
		t.Fatalf("expected generation 5, got %d", lastGen)
	}
}
