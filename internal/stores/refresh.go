package stores

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrRefreshNotFound is returned when no record matches the token hash.
	ErrRefreshNotFound = errors.New("refresh token not found")
	// ErrRefreshExpired is returned when the matched record outlived its TTL.
	ErrRefreshExpired = errors.New("refresh token expired")
	// ErrFamilyRevoked is returned when the token's family is revoked.
	ErrFamilyRevoked = errors.New("token family revoked")
	// ErrRefreshReused is returned when an already-used record is presented
	// again; the family has been revoked as a side effect.
	ErrRefreshReused = errors.New("refresh token reuse detected")
	// ErrRefreshUnavailable indicates the refresh store backend is unreachable.
	ErrRefreshUnavailable = errors.New("refresh store unavailable")
)

const (
	rotateStatusNotFound int64 = 0
	rotateStatusExpired  int64 = 1
	rotateStatusRevoked  int64 = 2
	rotateStatusReuse    int64 = 3
	rotateStatusRotated  int64 = 4
)

// The whole read-check-mark-create sequence runs as one script: at most one
// rotation per generation succeeds, and presenting a spent record marks the
// family revoked inside the same script that detects it. The family key is
// derived from a prefix argument because the record must be read before the
// family is known.
//
// Check order matters: family revocation dominates, then reuse (which must
// fire even for expired records — a replayed stale token is still a theft
// signal), then expiry.
const rotateRefreshScript = `
local rt = KEYS[1]
local nxt = KEYS[2]
local famPrefix = ARGV[1]
local now = tonumber(ARGV[2])
local ttl = tonumber(ARGV[3])
local retention = tonumber(ARGV[4])

if redis.call("EXISTS", rt) == 0 then
  return {0}
end

local family = redis.call("HGET", rt, "family")
if not family then
  return {0}
end
local fam = famPrefix .. family

if redis.call("HGET", fam, "revoked") == "1" then
  return {2, family}
end

if redis.call("HGET", rt, "used") == "1" then
  redis.call("HSET", fam, "revoked", "1")
  return {3, family}
end

local exp = tonumber(redis.call("HGET", rt, "exp"))
if not exp or exp <= now then
  redis.call("DEL", rt)
  return {1}
end

local gen = tonumber(redis.call("HGET", rt, "gen")) or 0
local nextgen = gen + 1

redis.call("HSET", rt, "used", "1")
redis.call("EXPIRE", rt, retention)

redis.call("HSET", fam, "gen", nextgen)
redis.call("EXPIRE", fam, ttl + retention)

redis.call("HSET", nxt, "family", family)
redis.call("HSET", nxt, "gen", nextgen)
redis.call("HSET", nxt, "used", "0")
redis.call("HSET", nxt, "exp", now + ttl)
redis.call("EXPIRE", nxt, ttl)

local subject = redis.call("HGET", fam, "subject") or ""
local client = redis.call("HGET", fam, "client") or ""
local scope = redis.call("HGET", fam, "scope") or ""

return {4, family, nextgen, subject, client, scope}
`

// Revocation is a single write on the family hash; rotation checks the flag
// first, so one HSET invalidates every generation at once. Guarding on
// existence keeps a revoke of an already-expired family from leaving a
// stray key with no TTL.
const revokeFamilyScript = `
if redis.call("EXISTS", KEYS[1]) == 1 then
  redis.call("HSET", KEYS[1], "revoked", "1")
  return 1
end
return 0
`

var (
	rotateRefreshLua = redis.NewScript(rotateRefreshScript)
	revokeFamilyLua  = redis.NewScript(revokeFamilyScript)
)

// Family describes a refresh-token lineage.
type Family struct {
	FamilyID   string
	SubjectID  string
	ClientID   string
	Scope      string
	Generation uint32
	Revoked    bool
}

// Rotation is the successful result of a rotate call.
type Rotation struct {
	FamilyID   string
	Generation uint32
	SubjectID  string
	ClientID   string
	Scope      string
}

// RefreshStore persists refresh-token families and per-generation records.
// Records are keyed by the hash of the token secret — the raw secret is
// never stored.
type RefreshStore struct {
	redis  redis.UniversalClient
	prefix string
}

// NewRefreshStore creates a [RefreshStore] backed by the given Redis client.
func NewRefreshStore(redisClient redis.UniversalClient, prefix string) *RefreshStore {
	if prefix == "" {
		prefix = "ac"
	}
	return &RefreshStore{redis: redisClient, prefix: prefix}
}

func (s *RefreshStore) familyPrefix() string {
	return s.prefix + ":fam:"
}

func (s *RefreshStore) familyKey(familyID string) string {
	return s.familyPrefix() + familyID
}

func (s *RefreshStore) tokenKey(secretHash [32]byte) string {
	return s.prefix + ":rt:" + hex.EncodeToString(secretHash[:])
}

// CreateFamily persists a new family at generation zero together with its
// first refresh record.
func (s *RefreshStore) CreateFamily(
	ctx context.Context,
	fam *Family,
	firstSecretHash [32]byte,
	ttl time.Duration,
	now time.Time,
) error {
	famKey := s.familyKey(fam.FamilyID)
	rtKey := s.tokenKey(firstSecretHash)

	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, famKey,
			"subject", fam.SubjectID,
			"client", fam.ClientID,
			"scope", fam.Scope,
			"gen", 0,
			"revoked", "0",
		)
		pipe.Expire(ctx, famKey, ttl)
		pipe.HSet(ctx, rtKey,
			"family", fam.FamilyID,
			"gen", 0,
			"used", "0",
			"exp", now.Add(ttl).Unix(),
		)
		pipe.Expire(ctx, rtKey, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRefreshUnavailable, err)
	}
	return nil
}

// Rotate atomically marks the record for providedHash used and creates the
// next generation under nextHash. Exactly one concurrent caller succeeds;
// a caller presenting a spent record gets [ErrRefreshReused] and the family
// is revoked before the error returns.
func (s *RefreshStore) Rotate(
	ctx context.Context,
	providedHash, nextHash [32]byte,
	ttl, retention time.Duration,
	now time.Time,
) (*Rotation, error) {
	res, err := rotateRefreshLua.Run(ctx, s.redis,
		[]string{s.tokenKey(providedHash), s.tokenKey(nextHash)},
		s.familyPrefix(),
		now.Unix(),
		int64(ttl.Seconds()),
		int64(retention.Seconds()),
	).Slice()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRefreshUnavailable, err)
	}

	status, fields, err := splitStatus(res)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRefreshUnavailable, err)
	}

	switch status {
	case rotateStatusNotFound:
		return nil, ErrRefreshNotFound
	case rotateStatusExpired:
		return nil, ErrRefreshExpired
	case rotateStatusRevoked:
		return nil, ErrFamilyRevoked
	case rotateStatusReuse:
		return nil, ErrRefreshReused
	case rotateStatusRotated:
		if len(fields) < 5 {
			return nil, fmt.Errorf("%w: short rotate reply", ErrRefreshUnavailable)
		}
		gen, err := parseGeneration(res[2])
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRefreshUnavailable, err)
		}
		return &Rotation{
			FamilyID:   fields[0],
			Generation: gen,
			SubjectID:  fields[2],
			ClientID:   fields[3],
			Scope:      fields[4],
		}, nil
	default:
		return nil, fmt.Errorf("%w: unknown rotate status %d", ErrRefreshUnavailable, status)
	}
}

// RevokeFamily marks the family revoked. Idempotent; revoking a family that
// has already expired out of the store is a no-op.
func (s *RefreshStore) RevokeFamily(ctx context.Context, familyID string) error {
	err := revokeFamilyLua.Run(ctx, s.redis, []string{s.familyKey(familyID)}).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("%w: %v", ErrRefreshUnavailable, err)
	}
	return nil
}

// GetFamily reads a family record, mainly for auditing and tests.
func (s *RefreshStore) GetFamily(ctx context.Context, familyID string) (*Family, error) {
	vals, err := s.redis.HGetAll(ctx, s.familyKey(familyID)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRefreshUnavailable, err)
	}
	if len(vals) == 0 {
		return nil, ErrRefreshNotFound
	}

	fam := &Family{
		FamilyID:  familyID,
		SubjectID: vals["subject"],
		ClientID:  vals["client"],
		Scope:     vals["scope"],
		Revoked:   vals["revoked"] == "1",
	}
	if raw, ok := vals["gen"]; ok {
		var gen uint32
		if _, err := fmt.Sscanf(raw, "%d", &gen); err == nil {
			fam.Generation = gen
		}
	}
	return fam, nil
}

func parseGeneration(v interface{}) (uint32, error) {
	n, ok := v.(int64)
	if !ok || n < 0 {
		return 0, errors.New("malformed generation")
	}
	return uint32(n), nil
}
