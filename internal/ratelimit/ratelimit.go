// Package ratelimit implements a fixed-window request counter shared through
// redis, keyed by client identity.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// The window opens on the first hit after the previous one reset. Count and
// reset time live in one hash so the check-and-increment is a single script.
var fixedWindow = redis.NewScript(`
local now = tonumber(ARGV[3])
local reset = tonumber(redis.call('HGET', KEYS[1], 'reset'))
local count
if not reset or now >= reset then
	reset = now + tonumber(ARGV[2])
	count = 1
	redis.call('HSET', KEYS[1], 'count', count, 'reset', reset)
else
	count = redis.call('HINCRBY', KEYS[1], 'count', 1)
end
redis.call('PEXPIRE', KEYS[1], ARGV[4])
return {count, reset}
`)

const keyTTL = 5 * time.Minute

type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter is the time left until the window resets, rounded up to seconds.
func (d Decision) RetryAfter(now time.Time) time.Duration {
	left := d.ResetAt.Sub(now)
	if left <= 0 {
		return 0
	}
	return (left + time.Second - 1).Truncate(time.Second)
}

type Limiter struct {
	rdb    redis.Scripter
	prefix string
	limit  int
	window time.Duration
	now    func() time.Time
}

type Option func(*Limiter)

func WithClock(now func() time.Time) Option { return func(l *Limiter) { l.now = now } }

func WithPrefix(p string) Option { return func(l *Limiter) { l.prefix = p } }

func New(rdb redis.Scripter, limit int, window time.Duration, opts ...Option) *Limiter {
	l := &Limiter{
		rdb:    rdb,
		prefix: "ratelimit:",
		limit:  limit,
		window: window,
		now:    time.Now,
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Allow counts one hit for id and reports whether it fits in the current window.
func (l *Limiter) Allow(ctx context.Context, id string) (Decision, error) {
	now := l.now()
	res, err := fixedWindow.Run(ctx, l.rdb, []string{l.prefix + id},
		l.limit, l.window.Milliseconds(), now.UnixMilli(), keyTTL.Milliseconds()).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit %s: %w", id, err)
	}
	if len(res) != 2 {
		return Decision{}, fmt.Errorf("rate limit %s: unexpected script reply %v", id, res)
	}
	count := int(res[0])
	remaining := l.limit - count
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   count <= l.limit,
		Limit:     l.limit,
		Remaining: remaining,
		ResetAt:   time.UnixMilli(res[1]),
	}, nil
}
