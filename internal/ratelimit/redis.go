package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// incrScript bumps the counter and starts the window's expiry on the
// first hit, returning {count, remaining ttl} from one atomic call.
var incrScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
return {current, ttl}
`)

// RedisCounter implements Counter on a shared redis instance. Every
// call carries a bounded timeout; exceeding it reports the store as
// unavailable rather than blocking the request.
type RedisCounter struct {
	client  *redis.Client
	timeout time.Duration
	now     func() time.Time
}

func NewRedisCounter(client *redis.Client, timeout time.Duration) *RedisCounter {
	return &RedisCounter{client: client, timeout: timeout, now: time.Now}
}

func (c *RedisCounter) Incr(ctx context.Context, key string, window time.Duration) (int64, time.Time, error) {
	windowMillis := window.Milliseconds()
	if windowMillis <= 0 {
		windowMillis = 1000
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	result, err := incrScript.Run(ctx, c.client, []string{key}, windowMillis).Result()
	if err != nil {
		return 0, time.Time{}, err
	}

	values, ok := result.([]any)
	if !ok || len(values) < 2 {
		return 0, time.Time{}, errors.New("unexpected rate limit counter response")
	}
	count, ok := values[0].(int64)
	if !ok {
		return 0, time.Time{}, errors.New("invalid rate limit counter value")
	}
	ttlMillis, _ := values[1].(int64)

	resetAt := c.now()
	if ttlMillis > 0 {
		resetAt = resetAt.Add(time.Duration(ttlMillis) * time.Millisecond)
	}
	return count, resetAt, nil
}
