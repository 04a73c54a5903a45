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
	// ErrRequestNotFound is returned when no pending request exists for a state.
	ErrRequestNotFound = errors.New("authorization request not found")
	// ErrRequestExpired is returned when the pending request outlived its TTL.
	ErrRequestExpired = errors.New("authorization request expired")
	// ErrCodeNotFound is returned when no authorization code record exists.
	ErrCodeNotFound = errors.New("authorization code not found")
	// ErrCodeExpired is returned when the authorization code outlived its TTL.
	ErrCodeExpired = errors.New("authorization code expired")
	// ErrCodeAlreadyUsed is returned on a second redemption of the same code.
	ErrCodeAlreadyUsed = errors.New("authorization code already used")
	// ErrAuthorizeUnavailable indicates the authorization store backend is unreachable.
	ErrAuthorizeUnavailable = errors.New("authorization store unavailable")
)

const (
	consumeStatusNotFound int64 = 0
	consumeStatusExpired  int64 = 1
	consumeStatusOK       int64 = 2
)

const (
	redeemStatusNotFound int64 = 0
	redeemStatusExpired  int64 = 1
	redeemStatusReplay   int64 = 2
	redeemStatusRedeemed int64 = 3
)

// Single-use consume: the request is read and deleted in one script so two
// concurrent approvals for the same state cannot both succeed.
const consumeRequestScript = `
local key = KEYS[1]
local now = tonumber(ARGV[1])

if redis.call("EXISTS", key) == 0 then
  return {0}
end

local exp = tonumber(redis.call("HGET", key, "exp"))
if not exp or exp <= now then
  redis.call("DEL", key)
  return {1}
end

local client = redis.call("HGET", key, "client") or ""
local redirect = redis.call("HGET", key, "redirect") or ""
local challenge = redis.call("HGET", key, "challenge") or ""
local method = redis.call("HGET", key, "method") or ""
local scope = redis.call("HGET", key, "scope") or ""
redis.call("DEL", key)

return {2, client, redirect, challenge, method, scope}
`

// Atomic read-check-mark: the used flag flips false to true exactly once.
// A replayed code returns the family minted from the first redemption so
// the caller can cascade-revoke it. The spent record is retained (with a
// retention TTL) for exactly that purpose.
const redeemCodeScript = `
local key = KEYS[1]
local now = tonumber(ARGV[1])
local retention = tonumber(ARGV[2])

if redis.call("EXISTS", key) == 0 then
  return {0}
end

if redis.call("HGET", key, "used") == "1" then
  local family = redis.call("HGET", key, "family") or ""
  return {2, family}
end

local exp = tonumber(redis.call("HGET", key, "exp"))
if not exp or exp <= now then
  redis.call("DEL", key)
  return {1}
end

redis.call("HSET", key, "used", "1")
redis.call("EXPIRE", key, retention)

local client = redis.call("HGET", key, "client") or ""
local redirect = redis.call("HGET", key, "redirect") or ""
local challenge = redis.call("HGET", key, "challenge") or ""
local method = redis.call("HGET", key, "method") or ""
local subject = redis.call("HGET", key, "subject") or ""
local scope = redis.call("HGET", key, "scope") or ""

return {3, client, redirect, challenge, method, subject, scope}
`

var (
	consumeRequestLua = redis.NewScript(consumeRequestScript)
	redeemCodeLua     = redis.NewScript(redeemCodeScript)
)

// AuthorizationRequest is a pending start-of-flow handshake keyed by state.
type AuthorizationRequest struct {
	ClientID        string
	RedirectURI     string
	CodeChallenge   string
	ChallengeMethod string
	Scope           string
	ExpiresAt       int64
}

// AuthorizationCode is a one-time code record. Used flips exactly once;
// FamilyID is bound after redemption for replay cascade revocation.
type AuthorizationCode struct {
	ClientID        string
	RedirectURI     string
	CodeChallenge   string
	ChallengeMethod string
	SubjectID       string
	Scope           string
	ExpiresAt       int64
}

// AuthorizeStore persists authorization requests (keyed by state) and
// authorization codes (keyed by code hash).
type AuthorizeStore struct {
	redis  redis.UniversalClient
	prefix string
}

// NewAuthorizeStore creates an [AuthorizeStore] backed by the given Redis client.
func NewAuthorizeStore(redisClient redis.UniversalClient, prefix string) *AuthorizeStore {
	if prefix == "" {
		prefix = "ac"
	}
	return &AuthorizeStore{redis: redisClient, prefix: prefix}
}

func (s *AuthorizeStore) requestKey(state string) string {
	return s.prefix + ":req:" + state
}

func (s *AuthorizeStore) codeKey(codeHash [32]byte) string {
	return s.prefix + ":code:" + hex.EncodeToString(codeHash[:])
}

// SaveRequest persists a pending authorization request under its state value.
func (s *AuthorizeStore) SaveRequest(ctx context.Context, state string, req *AuthorizationRequest, ttl time.Duration) error {
	key := s.requestKey(state)

	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key,
			"client", req.ClientID,
			"redirect", req.RedirectURI,
			"challenge", req.CodeChallenge,
			"method", req.ChallengeMethod,
			"scope", req.Scope,
			"exp", req.ExpiresAt,
		)
		pipe.Expire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAuthorizeUnavailable, err)
	}
	return nil
}

// ConsumeRequest atomically reads and deletes the request stored under
// state. At most one caller ever receives the record.
func (s *AuthorizeStore) ConsumeRequest(ctx context.Context, state string, now time.Time) (*AuthorizationRequest, error) {
	res, err := consumeRequestLua.Run(ctx, s.redis,
		[]string{s.requestKey(state)},
		now.Unix(),
	).Slice()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthorizeUnavailable, err)
	}

	status, fields, err := splitStatus(res)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthorizeUnavailable, err)
	}

	switch status {
	case consumeStatusNotFound:
		return nil, ErrRequestNotFound
	case consumeStatusExpired:
		return nil, ErrRequestExpired
	case consumeStatusOK:
		if len(fields) < 5 {
			return nil, fmt.Errorf("%w: short consume reply", ErrAuthorizeUnavailable)
		}
		return &AuthorizationRequest{
			ClientID:        fields[0],
			RedirectURI:     fields[1],
			CodeChallenge:   fields[2],
			ChallengeMethod: fields[3],
			Scope:           fields[4],
		}, nil
	default:
		return nil, fmt.Errorf("%w: unknown consume status %d", ErrAuthorizeUnavailable, status)
	}
}

// SaveCode persists a freshly minted authorization code keyed by its hash.
func (s *AuthorizeStore) SaveCode(ctx context.Context, codeHash [32]byte, code *AuthorizationCode, ttl time.Duration) error {
	key := s.codeKey(codeHash)

	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key,
			"client", code.ClientID,
			"redirect", code.RedirectURI,
			"challenge", code.CodeChallenge,
			"method", code.ChallengeMethod,
			"subject", code.SubjectID,
			"scope", code.Scope,
			"exp", code.ExpiresAt,
			"used", "0",
			"family", "",
		)
		pipe.Expire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAuthorizeUnavailable, err)
	}
	return nil
}

// RedeemCode atomically marks the code used and returns its record. On a
// replay it returns [ErrCodeAlreadyUsed] together with the family minted
// by the first redemption (empty if none was bound).
func (s *AuthorizeStore) RedeemCode(ctx context.Context, codeHash [32]byte, now time.Time, retention time.Duration) (*AuthorizationCode, string, error) {
	res, err := redeemCodeLua.Run(ctx, s.redis,
		[]string{s.codeKey(codeHash)},
		now.Unix(),
		int64(retention.Seconds()),
	).Slice()
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrAuthorizeUnavailable, err)
	}

	status, fields, err := splitStatus(res)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrAuthorizeUnavailable, err)
	}

	switch status {
	case redeemStatusNotFound:
		return nil, "", ErrCodeNotFound
	case redeemStatusExpired:
		return nil, "", ErrCodeExpired
	case redeemStatusReplay:
		family := ""
		if len(fields) > 0 {
			family = fields[0]
		}
		return nil, family, ErrCodeAlreadyUsed
	case redeemStatusRedeemed:
		if len(fields) < 6 {
			return nil, "", fmt.Errorf("%w: short redeem reply", ErrAuthorizeUnavailable)
		}
		return &AuthorizationCode{
			ClientID:        fields[0],
			RedirectURI:     fields[1],
			CodeChallenge:   fields[2],
			ChallengeMethod: fields[3],
			SubjectID:       fields[4],
			Scope:           fields[5],
		}, "", nil
	default:
		return nil, "", fmt.Errorf("%w: unknown redeem status %d", ErrAuthorizeUnavailable, status)
	}
}

// BindFamily records the token family minted from a redeemed code so a
// later replay of the same code can revoke it.
func (s *AuthorizeStore) BindFamily(ctx context.Context, codeHash [32]byte, familyID string) error {
	key := s.codeKey(codeHash)

	// HSET on a missing key would resurrect an expired record without TTL,
	// so guard on existence inside a transaction.
	err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
		exists, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if exists == 0 {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, "family", familyID)
			return nil
		})
		return err
	}, key)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAuthorizeUnavailable, err)
	}
	return nil
}

func splitStatus(res []interface{}) (int64, []string, error) {
	if len(res) == 0 {
		return 0, nil, errors.New("empty script reply")
	}
	status, ok := res[0].(int64)
	if !ok {
		return 0, nil, errors.New("malformed script status")
	}

	fields := make([]string, 0, len(res)-1)
	for _, v := range res[1:] {
		str, _ := v.(string)
		fields = append(fields, str)
	}
	return status, fields, nil
}
