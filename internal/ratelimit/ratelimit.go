package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// allowScript refills the bucket for the elapsed time and takes one token.
var allowScript = redis.NewScript(`
	local key = KEYS[1]
	local capacity = tonumber(ARGV[1])
	local refill_rate = tonumber(ARGV[2])
	local window = tonumber(ARGV[3])
	local now = tonumber(ARGV[4])

	local bucket = redis.call('HMGET', key, 'tokens', 'last_refill')
	local tokens = tonumber(bucket[1]) or capacity
	local last_refill = tonumber(bucket[2]) or now

	local tokens_to_add = math.floor(((now - last_refill) / window) * refill_rate)
	if tokens_to_add > 0 then
		tokens = math.min(capacity, tokens + tokens_to_add)
		last_refill = now
	end

	local allowed = 0
	if tokens > 0 then
		tokens = tokens - 1
		allowed = 1
	end

	redis.call('HMSET', key, 'tokens', tokens, 'last_refill', last_refill)
	redis.call('EXPIRE', key, window * 2)
	return allowed
`)

// remainingScript reports the refilled token count without consuming one.
var remainingScript = redis.NewScript(`
	local key = KEYS[1]
	local capacity = tonumber(ARGV[1])
	local refill_rate = tonumber(ARGV[2])
	local window = tonumber(ARGV[3])
	local now = tonumber(ARGV[4])

	local bucket = redis.call('HMGET', key, 'tokens', 'last_refill')
	local tokens = tonumber(bucket[1]) or capacity
	local last_refill = tonumber(bucket[2]) or now

	local tokens_to_add = math.floor(((now - last_refill) / window) * refill_rate)
	if tokens_to_add > 0 then
		tokens = math.min(capacity, tokens + tokens_to_add)
	end

	return tokens
`)

// TokenBucket is a Redis backed token bucket shared by every replica
type TokenBucket struct {
	redis    *redis.Client
	capacity int64         // Maximum number of tokens
	refill   int64         // Tokens added per window
	window   time.Duration // Refill window
	now      func() time.Time
}

// NewTokenBucket creates a limiter refilling refillRate tokens per minute
func NewTokenBucket(redisClient *redis.Client, capacity, refillRate int64) *TokenBucket {
	return &TokenBucket{
		redis:    redisClient,
		capacity: capacity,
		refill:   refillRate,
		window:   time.Minute,
		now:      time.Now,
	}
}

func (tb *TokenBucket) Capacity() int64 {
	return tb.capacity
}

func bucketKey(clientKey, action string) string {
	return fmt.Sprintf("rate_limit:%s:%s", action, clientKey)
}

func (tb *TokenBucket) run(ctx context.Context, script *redis.Script, clientKey, action string) (int64, error) {
	result, err := script.Run(ctx, tb.redis, []string{bucketKey(clientKey, action)},
		tb.capacity, tb.refill, int64(tb.window.Seconds()), tb.now().Unix()).Result()
	if err != nil {
		return 0, err
	}

	n, ok := result.(int64)
	if !ok {
		return 0, fmt.Errorf("unexpected result type %T from rate limit script", result)
	}
	return n, nil
}

// Allow takes a token for clientKey performing action, reporting whether
// one was available
func (tb *TokenBucket) Allow(ctx context.Context, clientKey, action string) (bool, error) {
	allowed, err := tb.run(ctx, allowScript, clientKey, action)
	if err != nil {
		return false, fmt.Errorf("rate limit check failed: %w", err)
	}
	return allowed == 1, nil
}

// GetRemaining returns the tokens left for clientKey performing action
func (tb *TokenBucket) GetRemaining(ctx context.Context, clientKey, action string) (int64, error) {
	remaining, err := tb.run(ctx, remainingScript, clientKey, action)
	if err != nil {
		return 0, fmt.Errorf("failed to get remaining tokens: %w", err)
	}
	return remaining, nil
}

// Reset clears the bucket for clientKey performing action
func (tb *TokenBucket) Reset(ctx context.Context, clientKey, action string) error {
	return tb.redis.Del(ctx, bucketKey(clientKey, action)).Err()
}
