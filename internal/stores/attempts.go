package stores

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrAttemptsUnavailable indicates the attempt counter backend is unreachable.
	ErrAttemptsUnavailable = errors.New("attempt store unavailable")
)

// Increment-and-compare in one script: two concurrent failures can never
// both observe the pre-threshold count. Crossing the threshold sets the
// lock key and clears the counter in the same script.
const recordFailureScript = `
local cnt = KEYS[1]
local lock = KEYS[2]
local window = tonumber(ARGV[1])
local threshold = tonumber(ARGV[2])
local lockTTL = tonumber(ARGV[3])

local c = redis.call("INCR", cnt)
if c == 1 then
  redis.call("EXPIRE", cnt, window)
end

if c >= threshold then
  redis.call("SET", lock, "1", "EX", lockTTL)
  redis.call("DEL", cnt)
  return {1, lockTTL}
end

return {0, c}
`

var recordFailureLua = redis.NewScript(recordFailureScript)

// FailureOutcome reports the effect of recording one failed attempt.
type FailureOutcome struct {
	Locked    bool
	Count     int64
	LockedFor time.Duration
}

// AttemptStore tracks failed login attempts per account key and the
// resulting time-boxed locks. The lock key's TTL is the authoritative
// locked-until value, so expiry needs no sweeper.
type AttemptStore struct {
	redis  redis.UniversalClient
	prefix string
}

// NewAttemptStore creates an [AttemptStore] backed by the given Redis client.
func NewAttemptStore(redisClient redis.UniversalClient, prefix string) *AttemptStore {
	if prefix == "" {
		prefix = "ac"
	}
	return &AttemptStore{redis: redisClient, prefix: prefix}
}

func (s *AttemptStore) counterKey(accountKey string) string {
	return s.prefix + ":cnt:" + accountKey
}

func (s *AttemptStore) lockKey(accountKey string) string {
	return s.prefix + ":lock:" + accountKey
}

// CheckLock returns the remaining lock duration for the account key, or
// zero if the key is not locked.
func (s *AttemptStore) CheckLock(ctx context.Context, accountKey string) (time.Duration, error) {
	ttl, err := s.redis.PTTL(ctx, s.lockKey(accountKey)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrAttemptsUnavailable, err)
	}
	if ttl <= 0 {
		// -2 missing key, -1 no expiry; locks are always set with a TTL.
		return 0, nil
	}
	return ttl, nil
}

// RecordFailure atomically increments the failure counter within the
// current window and, when the threshold is crossed, sets the lock and
// resets the counter.
func (s *AttemptStore) RecordFailure(
	ctx context.Context,
	accountKey string,
	window time.Duration,
	threshold int,
	lockDuration time.Duration,
) (*FailureOutcome, error) {
	res, err := recordFailureLua.Run(ctx, s.redis,
		[]string{s.counterKey(accountKey), s.lockKey(accountKey)},
		int64(window.Seconds()),
		threshold,
		int64(lockDuration.Seconds()),
	).Slice()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAttemptsUnavailable, err)
	}
	if len(res) != 2 {
		return nil, fmt.Errorf("%w: short attempt reply", ErrAttemptsUnavailable)
	}

	locked, _ := res[0].(int64)
	value, _ := res[1].(int64)

	if locked == 1 {
		return &FailureOutcome{
			Locked:    true,
			LockedFor: time.Duration(value) * time.Second,
		}, nil
	}
	return &FailureOutcome{Count: value}, nil
}

// Reset clears the counter and lock for the account key. Called on
// successful verification.
func (s *AttemptStore) Reset(ctx context.Context, accountKey string) error {
	err := s.redis.Del(ctx, s.counterKey(accountKey), s.lockKey(accountKey)).Err()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAttemptsUnavailable, err)
	}
	return nil
}

// FailureCount returns the current in-window failure count. Missing keys
// return zero and do not reveal account existence.
func (s *AttemptStore) FailureCount(ctx context.Context, accountKey string) (int64, error) {
	count, err := s.redis.Get(ctx, s.counterKey(accountKey)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrAttemptsUnavailable, err)
	}
	if count < 0 {
		return 0, nil
	}
	return count, nil
}
