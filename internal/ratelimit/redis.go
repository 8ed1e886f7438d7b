package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisPrefix namespaces the window counters.
const RedisPrefix = "payguard:ratelimit:"

// fixedWindow increments the counter and starts its expiry on the first hit
// of a window, returning the count and the remaining TTL in milliseconds.
var fixedWindow = redis.NewScript(`
local c = redis.call('INCR', KEYS[1])
if c == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
local ttl = redis.call('PTTL', KEYS[1])
if ttl < 0 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
  ttl = tonumber(ARGV[1])
end
return {c, ttl}
`)

// Redis is a Limiter shared between instances.
type Redis struct {
	client *redis.Client
	cfg    Config
	now    func() time.Time
}

// NewRedis creates a limiter backed by client.
func NewRedis(client *redis.Client, cfg Config) *Redis {
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultConfig().Limit
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultConfig().Window
	}
	return &Redis{client: client, cfg: cfg, now: time.Now}
}

// Allow implements Limiter.
func (r *Redis) Allow(ctx context.Context, key string) (Result, error) {
	vals, err := fixedWindow.Run(ctx, r.client, []string{RedisPrefix + key}, r.cfg.Window.Milliseconds()).Slice()
	if err != nil {
		return Result{}, fmt.Errorf("ratelimit: %w", err)
	}
	if len(vals) != 2 {
		return Result{}, fmt.Errorf("ratelimit: unexpected script reply %v", vals)
	}
	count, _ := vals[0].(int64)
	ttl, _ := vals[1].(int64)
	return newResult(r.cfg.Limit, int(count), r.now().Add(time.Duration(ttl)*time.Millisecond)), nil
}
