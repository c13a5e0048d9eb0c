package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// takeScript refills the bucket from the redis clock, takes one token when
// available and returns {allowed, remaining, retry_after_ms}.
const takeScript = `
local rate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local ttl = tonumber(ARGV[3])

local t = redis.call("TIME")
local now = t[1] * 1000 + math.floor(t[2] / 1000)

local state = redis.call("HMGET", KEYS[1], "tokens", "ts")
local tokens = tonumber(state[1]) or burst
local ts = tonumber(state[2]) or now
if now > ts then
  tokens = math.min(burst, tokens + (now - ts) / 1000 * rate)
end

local allowed = 0
local wait = 0
if tokens >= 1 then
  allowed = 1
  tokens = tokens - 1
else
  wait = math.ceil((1 - tokens) / rate * 1000)
end

redis.call("HSET", KEYS[1], "tokens", tostring(tokens), "ts", now)
redis.call("PEXPIRE", KEYS[1], ttl)
return {allowed, math.floor(tokens), wait}
`

var errBucketMisconfigured = errors.New("token bucket misconfigured")

// TokenBucket is a redis backed bucket holding burst tokens refilled at rate
// tokens per second. Every key gets its own bucket.
type TokenBucket struct {
	client redis.UniversalClient
	script *redis.Script
	rate   float64
	burst  int
	ttl    time.Duration
}

type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

func NewTokenBucket(client redis.UniversalClient, rate float64, burst int) *TokenBucket {
	return &TokenBucket{
		client: client,
		script: redis.NewScript(takeScript),
		rate:   rate,
		burst:  burst,
		ttl:    idleTTL(rate, burst),
	}
}

// Take consumes one token from the bucket at key.
func (b *TokenBucket) Take(ctx context.Context, key string) (Decision, error) {
	if b == nil || b.client == nil || b.rate <= 0 || b.burst <= 0 {
		return Decision{}, errBucketMisconfigured
	}
	if key == "" {
		return Decision{}, fmt.Errorf("%w: empty key", errBucketMisconfigured)
	}

	res, err := b.script.Run(ctx, b.client, []string{key}, b.rate, b.burst, b.ttl.Milliseconds()).Int64Slice()
	if err != nil {
		return Decision{}, err
	}
	if len(res) != 3 {
		return Decision{}, fmt.Errorf("token bucket: unexpected reply of %d values", len(res))
	}
	return Decision{
		Allowed:    res[0] == 1,
		Remaining:  int(res[1]),
		RetryAfter: time.Duration(res[2]) * time.Millisecond,
	}, nil
}

// idleTTL keeps a bucket around for twice the time it takes to refill.
func idleTTL(rate float64, burst int) time.Duration {
	if rate <= 0 || burst <= 0 {
		return time.Second
	}
	return time.Duration(math.Max(1, math.Ceil(2*float64(burst)/rate))) * time.Second
}
