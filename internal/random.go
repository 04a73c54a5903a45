package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"

	"github.com/google/uuid"
)

const (
	stateTokenSize      = 32
	codeTokenSize       = 32
	refreshSecretSize   = 32
	refreshTokenRawSize = 16 + refreshSecretSize
)

// NewStateToken returns an unguessable CSRF state value.
func NewStateToken() (string, error) {
	return newOpaqueToken(stateTokenSize)
}

// NewCodeToken returns an unguessable one-time authorization code value.
func NewCodeToken() (string, error) {
	return newOpaqueToken(codeTokenSize)
}

// NewFamilyID returns a fresh refresh-token family identifier.
func NewFamilyID() string {
	return uuid.NewString()
}

func newOpaqueToken(size int) (string, error) {
	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// NewRefreshSecret returns the random half of a refresh token. The raw
// secret leaves the process exactly once, inside the encoded token.
func NewRefreshSecret() ([refreshSecretSize]byte, error) {
	var secret [refreshSecretSize]byte
	_, err := rand.Read(secret[:])
	return secret, err
}

// HashSecret derives the storage key for a refresh secret. Only this hash
// is ever persisted.
func HashSecret(secret [refreshSecretSize]byte) [32]byte {
	return sha256.Sum256(secret[:])
}

// HashToken hashes an opaque token string for storage keying.
func HashToken(token string) [32]byte {
	return sha256.Sum256([]byte(token))
}

// EncodeRefreshToken packs a family ID and secret into the opaque
// base64url token handed to clients: 16 family bytes + 32 secret bytes.
func EncodeRefreshToken(familyID string, secret [refreshSecretSize]byte) (string, error) {
	fid, err := uuid.Parse(familyID)
	if err != nil {
		return "", errors.New("invalid family id")
	}

	var raw [refreshTokenRawSize]byte
	copy(raw[:16], fid[:])
	copy(raw[16:], secret[:])

	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}

// DecodeRefreshToken splits an opaque refresh token back into family ID and
// secret. Structural failures are indistinguishable from unknown tokens to
// the caller.
func DecodeRefreshToken(token string) (string, [refreshSecretSize]byte, error) {
	var secret [refreshSecretSize]byte

	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return "", secret, err
	}
	if len(raw) != refreshTokenRawSize {
		return "", secret, errors.New("invalid refresh token size")
	}

	var fid uuid.UUID
	copy(fid[:], raw[:16])
	copy(secret[:], raw[16:])

	return fid.String(), secret, nil
}
