package velocity

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// RedisPrefix namespaces the velocity sorted sets.
const RedisPrefix = "payguard:velocity:"

// Redis is a Counter shared between instances. Each name is a sorted set
// of event ids scored by their unix-millisecond timestamp.
type Redis struct {
	client *redis.Client
	window time.Duration
	now    func() time.Time
}

// NewRedis creates a counter over the given window.
func NewRedis(client *redis.Client, window time.Duration) *Redis {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Redis{client: client, window: window, now: time.Now}
}

// WithClock replaces the time source. Intended for tests.
func (r *Redis) WithClock(now func() time.Time) *Redis {
	r.now = now
	return r
}

// Add implements Counter. All names are updated in one MULTI/EXEC.
func (r *Redis) Add(ctx context.Context, names []string) error {
	now := r.now()
	cutoff := ms(now.Add(-r.window))
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, name := range names {
			key := RedisPrefix + name
			pipe.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatInt(cutoff, 10))
			pipe.ZAdd(ctx, key, &redis.Z{Score: float64(ms(now)), Member: uuid.NewString()})
			pipe.PExpire(ctx, key, r.window)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("velocity add: %w", err)
	}
	return nil
}

// Max implements Counter.
func (r *Redis) Max(ctx context.Context, names []string) (int, error) {
	floor := "(" + strconv.FormatInt(ms(r.now().Add(-r.window)), 10)
	cmds := make([]*redis.IntCmd, len(names))
	_, err := r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, name := range names {
			cmds[i] = pipe.ZCount(ctx, RedisPrefix+name, floor, "+inf")
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("velocity count: %w", err)
	}
	best := 0
	for _, c := range cmds {
		if n := int(c.Val()); n > best {
			best = n
		}
	}
	return best, nil
}

func ms(t time.Time) int64 {
	return t.UnixMilli()
}
