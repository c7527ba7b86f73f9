package ratelimit

import (
	"context"
	"log/slog"
	"net/url"
	"sync"
	"time"
)

// RequestQueue spaces out outbound requests per target host.
type RequestQueue interface {
	// Wait blocks until a request to rawURL may be issued.
	Wait(ctx context.Context, rawURL string) error
}

type memoryQueue struct {
	mu    sync.Mutex
	delay time.Duration
	next  map[string]time.Time
	now   func() time.Time
	log   *slog.Logger
}

// NewMemoryQueue returns a process wide queue that keeps delay between requests to the same host.
func NewMemoryQueue(delay time.Duration, log *slog.Logger) *memoryQueue {
	return &memoryQueue{
		delay: delay,
		next:  make(map[string]time.Time),
		now:   time.Now,
		log:   log.With(slog.String("item", "MemoryQueue")),
	}
}

func (q *memoryQueue) Wait(ctx context.Context, rawURL string) error {
	host := hostOf(rawURL)

	q.mu.Lock()
	now := q.now()
	slot := q.next[host]
	if slot.Before(now) {
		slot = now
	}
	q.next[host] = slot.Add(q.delay)
	q.mu.Unlock()

	wait := slot.Sub(now)
	if wait <= 0 {
		return nil
	}

	q.log.Debug("Delay request", slog.String("host", host), slog.Duration("wait", wait))

	t := time.NewTimer(wait)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}

	return u.Host
}
