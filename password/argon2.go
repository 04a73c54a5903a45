package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	algorithmID = "argon2id"

	floorMemoryKB    uint32 = 8 * 1024
	floorTimeCost    uint32 = 1
	floorParallelism uint8  = 1
	floorSaltLength  uint32 = 16
	floorKeyLength   uint32 = 16
)

// Params holds Argon2id tuning parameters. Memory is expressed in KiB.
type Params struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// Hasher hashes and verifies passwords with a fixed parameter set.
//
// Hasher instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Hasher struct {
	params Params
}

// NewHasher validates the parameter set against hard floors and returns a
// ready [Hasher]. Parameters below the floors are rejected, not clamped.
func NewHasher(p Params) (*Hasher, error) {
	switch {
	case p.Memory < floorMemoryKB:
		return nil, errors.New("argon2 memory below 8 MiB floor")
	case p.Time < floorTimeCost:
		return nil, errors.New("argon2 time cost below floor")
	case p.Parallelism < floorParallelism:
		return nil, errors.New("argon2 parallelism below floor")
	case p.SaltLength < floorSaltLength:
		return nil, errors.New("argon2 salt length below 16 byte floor")
	case p.KeyLength < floorKeyLength:
		return nil, errors.New("argon2 key length below 16 byte floor")
	}
	return &Hasher{params: p}, nil
}

// Hash derives an Argon2id hash of plaintext with a fresh random salt and
// returns it in PHC string format.
func (h *Hasher) Hash(plaintext string) (string, error) {
	salt := make([]byte, h.params.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}

	key := argon2.IDKey(
		[]byte(plaintext),
		salt,
		h.params.Time,
		h.params.Memory,
		h.params.Parallelism,
		h.params.KeyLength,
	)

	return fmt.Sprintf(
		"$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		algorithmID,
		argon2.Version,
		h.params.Memory,
		h.params.Time,
		h.params.Parallelism,
		base64.StdEncoding.EncodeToString(salt),
		base64.StdEncoding.EncodeToString(key),
	), nil
}

// Verify reports whether plaintext matches the PHC-encoded hash. The hash
// parameters come from the encoded string, the comparison is constant time.
func (h *Hasher) Verify(plaintext, encoded string) (bool, error) {
	rec, err := decodePHC(encoded)
	if err != nil {
		return false, err
	}

	key := argon2.IDKey(
		[]byte(plaintext),
		rec.salt,
		rec.time,
		rec.memory,
		rec.parallelism,
		uint32(len(rec.key)),
	)

	return subtle.ConstantTimeCompare(key, rec.key) == 1, nil
}

// NeedsRehash reports whether encoded was produced with parameters weaker
// than the hasher's current configuration.
func (h *Hasher) NeedsRehash(encoded string) (bool, error) {
	rec, err := decodePHC(encoded)
	if err != nil {
		return false, err
	}

	if rec.memory < h.params.Memory ||
		rec.time < h.params.Time ||
		rec.parallelism < h.params.Parallelism ||
		uint32(len(rec.key)) != h.params.KeyLength {
		return true, nil
	}
	return false, nil
}

type phcRecord struct {
	memory      uint32
	time        uint32
	parallelism uint8
	salt        []byte
	key         []byte
}

func decodePHC(encoded string) (*phcRecord, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" {
		return nil, errors.New("invalid PHC format")
	}
	if parts[1] != algorithmID {
		return nil, errors.New("unsupported algorithm")
	}

	version, ok := strings.CutPrefix(parts[2], "v=")
	if !ok {
		return nil, errors.New("missing argon2 version")
	}
	v, err := strconv.Atoi(version)
	if err != nil || v != argon2.Version {
		return nil, errors.New("unsupported argon2 version")
	}

	var rec phcRecord
	if err := decodeParams(parts[3], &rec); err != nil {
		return nil, err
	}

	if rec.salt, err = base64.StdEncoding.DecodeString(parts[4]); err != nil {
		return nil, errors.New("invalid salt encoding")
	}
	if uint32(len(rec.salt)) < floorSaltLength {
		return nil, errors.New("invalid salt length")
	}

	if rec.key, err = base64.StdEncoding.DecodeString(parts[5]); err != nil {
		return nil, errors.New("invalid hash encoding")
	}
	if uint32(len(rec.key)) < floorKeyLength {
		return nil, errors.New("invalid hash length")
	}

	return &rec, nil
}

func decodeParams(part string, rec *phcRecord) error {
	pairs := strings.Split(part, ",")
	if len(pairs) != 3 {
		return errors.New("invalid parameter format")
	}

	seen := map[string]bool{}
	for _, pair := range pairs {
		k, raw, ok := strings.Cut(pair, "=")
		if !ok || seen[k] {
			return errors.New("invalid parameter entry")
		}
		seen[k] = true

		switch k {
		case "m":
			v, err := strconv.ParseUint(raw, 10, 32)
			if err != nil || uint32(v) < floorMemoryKB {
				return errors.New("invalid memory parameter")
			}
			rec.memory = uint32(v)
		case "t":
			v, err := strconv.ParseUint(raw, 10, 32)
			if err != nil || uint32(v) < floorTimeCost {
				return errors.New("invalid time parameter")
			}
			rec.time = uint32(v)
		case "p":
			v, err := strconv.ParseUint(raw, 10, 8)
			if err != nil || uint8(v) < floorParallelism {
				return errors.New("invalid parallelism parameter")
			}
			rec.parallelism = uint8(v)
		default:
			return errors.New("unsupported parameter")
		}
	}

	if !seen["m"] || !seen["t"] || !seen["p"] {
		return errors.New("missing parameters")
	}
	return nil
}
