package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	KeyPrefix    = "mfdl"
	KeyHostSlot  = "slot" // STRING. Present while the host is cooling down. SET NX PX {delay}.
	KeySeparator = ":"

	minPoll = 10 * time.Millisecond
)

// redisQueue shares request spacing between processes. A host slot key lives
// for exactly one delay; whoever manages to create it may fire.
type redisQueue struct {
	cl    *redis.Client
	delay time.Duration
	log   *slog.Logger
}

func NewRedisQueue(cl *redis.Client, delay time.Duration, log *slog.Logger) *redisQueue {
	return &redisQueue{
		cl:    cl,
		delay: delay,
		log:   log.With(slog.String("item", "RedisQueue")),
	}
}

func (q *redisQueue) Wait(ctx context.Context, rawURL string) error {
	// a slot without ttl would never expire
	if q.delay <= 0 {
		return nil
	}

	host := hostOf(rawURL)
	key := getKey(KeyPrefix, KeyHostSlot, host)

	for {
		ok, err := q.cl.SetNX(ctx, key, "1", q.delay).Result()
		if err != nil {
			return fmt.Errorf("cannot reserve request slot for %s: %w", host, err)
		}

		if ok {
			return nil
		}

		ttl, err := q.cl.PTTL(ctx, key).Result()
		if err != nil {
			return fmt.Errorf("cannot get request slot ttl for %s: %w", host, err)
		}

		if ttl < minPoll {
			ttl = minPoll
		}

		q.log.Debug("Delay request", slog.String("host", host), slog.Duration("wait", ttl))

		t := time.NewTimer(ttl)
		select {
		case <-ctx.Done():
			t.Stop()

			return ctx.Err()
		case <-t.C:
		}
	}
}

func getKey(keys ...string) string {
	return strings.Join(keys, KeySeparator)
}
