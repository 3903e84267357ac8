package ratelimit

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// allowScript atomically counts a request against the key's window.
// The counter key is created with a PEXPIRE matching the window on first
// increment; the script returns 1 when the request is admitted and 0 when
// the window is saturated.
var allowScript = redis.NewScript(`
local c = redis.call('INCR', KEYS[1])
if c == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
if c > tonumber(ARGV[2]) then return 0 end
return 1
`)

// Redis is a Store backed by a shared Redis counter, for hosts that run
// several replicas behind one admission budget. Keys carry a hash tag so
// each limiter key stays on a single cluster slot.
type Redis struct {
	rdb    redis.UniversalClient
	window time.Duration
	max    int
}

// NewRedis creates a Redis-backed store admitting max requests per window.
func NewRedis(rdb redis.UniversalClient, win time.Duration, max int) *Redis {
	if win <= 0 {
		win = time.Minute
	}
	if max <= 0 {
		max = 100
	}
	return &Redis{rdb: rdb, window: win, max: max}
}

func key(k string) string { return "qflow:{" + k + "}:ratelimit" }

// Allow runs the counting script; a Redis error fails open rather than
// rejecting work, since admission control is advisory under outage.
func (r *Redis) Allow(ctx context.Context, k string) (bool, error) {
	res, err := allowScript.Run(ctx, r.rdb, []string{key(k)},
		strconv.FormatInt(r.window.Milliseconds(), 10), strconv.Itoa(r.max)).Int()
	if err != nil {
		return true, err
	}
	return res == 1, nil
}

// Reset deletes the key's counter.
func (r *Redis) Reset(ctx context.Context, k string) error {
	return r.rdb.Del(ctx, key(k)).Err()
}
