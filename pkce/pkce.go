package pkce

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
)

// Method identifies a code challenge transformation.
type Method string

const (
	// MethodPlain passes the verifier through unchanged.
	MethodPlain Method = "plain"
	// MethodS256 hashes the verifier with SHA-256.
	MethodS256 Method = "S256"
)

const (
	minVerifierLength = 43
	maxVerifierLength = 128
)

var (
	// ErrInvalidVerifier is returned when a verifier violates the RFC 7636 grammar.
	ErrInvalidVerifier = errors.New("invalid pkce verifier")
	// ErrUnknownMethod is returned for methods other than plain and S256.
	ErrUnknownMethod = errors.New("unknown pkce method")
)

// ParseMethod maps a wire-level code_challenge_method value to a [Method].
func ParseMethod(raw string) (Method, error) {
	switch Method(raw) {
	case MethodPlain:
		return MethodPlain, nil
	case MethodS256:
		return MethodS256, nil
	default:
		return "", ErrUnknownMethod
	}
}

// ValidateVerifier checks the RFC 7636 code_verifier grammar:
// 43..128 characters from the unreserved set [A-Za-z0-9-._~].
func ValidateVerifier(verifier string) error {
	if len(verifier) < minVerifierLength || len(verifier) > maxVerifierLength {
		return ErrInvalidVerifier
	}
	for i := 0; i < len(verifier); i++ {
		if !isUnreserved(verifier[i]) {
			return ErrInvalidVerifier
		}
	}
	return nil
}

// DeriveChallenge computes the code_challenge a verifier produces under the
// given method. The verifier is validated first.
func DeriveChallenge(verifier string, method Method) (string, error) {
	if err := ValidateVerifier(verifier); err != nil {
		return "", err
	}

	switch method {
	case MethodPlain:
		return verifier, nil
	case MethodS256:
		sum := sha256.Sum256([]byte(verifier))
		return base64.RawURLEncoding.EncodeToString(sum[:]), nil
	default:
		return "", ErrUnknownMethod
	}
}

// VerifyChallenge reports whether verifier derives to the stored challenge
// under method. The comparison is constant time regardless of method.
func VerifyChallenge(verifier, challenge string, method Method) bool {
	derived, err := DeriveChallenge(verifier, method)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(derived), []byte(challenge)) == 1
}

func isUnreserved(c byte) bool {
	switch {
	case c >= 'A' && c <= 'Z':
		return true
	case c >= 'a' && c <= 'z':
		return true
	case c >= '0' && c <= '9':
		return true
	case c == '-' || c == '.' || c == '_' || c == '~':
		return true
	default:
		return false
	}
}
