package pkce

import (
	"strings"
	"testing"
)

// Appendix B of RFC 7636.
const (
	rfcVerifier  = "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
	rfcChallenge = "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM"
)

func TestDeriveChallengeS256RFCVector(t *testing.T) {
	got, err := DeriveChallenge(rfcVerifier, MethodS256)
	if err != nil {
		t.Fatalf("DeriveChallenge error: %v", err)
	}
	if got != rfcChallenge {
		t.Fatalf("challenge mismatch: got %q want %q", got, rfcChallenge)
	}
}

func TestDeriveChallengePlain(t *testing.T) {
	got, err := DeriveChallenge(rfcVerifier, MethodPlain)
	if err != nil {
		t.Fatalf("DeriveChallenge error: %v", err)
	}
	if got != rfcVerifier {
		t.Fatalf("plain challenge must equal verifier, got %q", got)
	}
}

func TestVerifyChallenge(t *testing.T) {
	if !VerifyChallenge(rfcVerifier, rfcChallenge, MethodS256) {
		t.Fatal("expected S256 verification to succeed")
	}
	if VerifyChallenge(rfcVerifier+"x", rfcChallenge, MethodS256) {
		t.Fatal("expected mismatched verifier to fail")
	}
	if !VerifyChallenge(rfcVerifier, rfcVerifier, MethodPlain) {
		t.Fatal("expected plain verification to succeed")
	}
	if VerifyChallenge(rfcVerifier, rfcChallenge, Method("S512")) {
		t.Fatal("unknown method must never verify")
	}
}

func TestValidateVerifierLength(t *testing.T) {
	if err := ValidateVerifier(strings.Repeat("a", 42)); err == nil {
		t.Fatal("expected error for 42-char verifier")
	}
	if err := ValidateVerifier(strings.Repeat("a", 43)); err != nil {
		t.Fatalf("unexpected error for 43-char verifier: %v", err)
	}
	if err := ValidateVerifier(strings.Repeat("a", 128)); err != nil {
		t.Fatalf("unexpected error for 128-char verifier: %v", err)
	}
	if err := ValidateVerifier(strings.Repeat("a", 129)); err == nil {
		t.Fatal("expected error for 129-char verifier")
	}
}

func TestValidateVerifierCharset(t *testing.T) {
	ok := strings.Repeat("A", 20) + "-._~" + strings.Repeat("0", 20)
	if err := ValidateVerifier(ok); err != nil {
		t.Fatalf("unexpected charset error: %v", err)
	}

	bad := []string{
		strings.Repeat("a", 42) + "+",
		strings.Repeat("a", 42) + "/",
		strings.Repeat("a", 42) + "=",
		strings.Repeat("a", 42) + " ",
	}
	for _, v := range bad {
		if err := ValidateVerifier(v); err == nil {
			t.Fatalf("expected charset error for %q", v[len(v)-1:])
		}
	}
}

func TestParseMethod(t *testing.T) {
	if m, err := ParseMethod("S256"); err != nil || m != MethodS256 {
		t.Fatalf("ParseMethod(S256) = %v, %v", m, err)
	}
	if m, err := ParseMethod("plain"); err != nil || m != MethodPlain {
		t.Fatalf("ParseMethod(plain) = %v, %v", m, err)
	}
	if _, err := ParseMethod("s256"); err == nil {
		t.Fatal("method names are case sensitive")
	}
}
