package httpadapter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/jgivc/mfdl/internal/common"
)

// TransportError is a connector, payload or response level failure.
// It never consumes a retry slot.
type TransportError struct {
	Op  string // connect, payload, response
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s error: %s", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// CheckStatus turns a non 2xx response into an error. Forbidden, throttled and
// server side statuses are response level transport errors, other statuses are plain failures.
func CheckStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	serr := &StatusError{StatusCode: resp.StatusCode}
	if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return &TransportError{Op: "response", Err: serr}
	}

	return serr
}

// Failure is the tagged outcome of a failed attempt.
type Failure struct {
	Err    error
	Counts bool // consumes a retry slot
	Stop   bool // ends the retry loop at once
}

// Classify tags err for the retry loop. status is the response status or 0 if there was none.
func Classify(err error, status int) *Failure {
	var te *TransportError
	counts := status != http.StatusForbidden && !errors.As(err, &te)

	return &Failure{Err: err, Counts: counts}
}

// Budget tracks consumed retry slots of one retry loop.
type Budget struct {
	used int
}

func (b *Budget) Used() int {
	return b.used
}

// Reset gives back every consumed slot. Used when a stalled transfer starts moving again.
func (b *Budget) Reset() {
	b.used = 0
}

type RetryConfig struct {
	Retries  int
	DelayMin time.Duration
	DelayMax time.Duration
}

type Retrier struct {
	cfg     RetryConfig
	aborted func() bool
	onRetry func(counted bool)
	sleep   func(ctx context.Context, d time.Duration) error
	log     *slog.Logger
}

// NewRetrier creates a retry loop runner. aborted may be nil.
func NewRetrier(cfg RetryConfig, aborted func() bool, log *slog.Logger) *Retrier {
	return &Retrier{
		cfg:     cfg,
		aborted: aborted,
		sleep:   sleepContext,
		log:     log.With(slog.String("item", "Retrier")),
	}
}

// OnRetry registers a callback invoked after every failed attempt.
func (r *Retrier) OnRetry(fn func(counted bool)) {
	r.onRetry = fn
}

// Do runs attempt up to Retries+1 counted times. Attempts ending in uncounted
// failures are repeated without spending the budget but still back off.
// It returns the number of consumed slots and nil on success, common.ErrAborted if the
// run was aborted between attempts or an error wrapping common.ErrConnection otherwise.
func (r *Retrier) Do(ctx context.Context, name string, attempt func(ctx context.Context, b *Budget) *Failure) (int, error) {
	var (
		budget  Budget
		lastErr error
	)

	for budget.used <= r.cfg.Retries {
		f := attempt(ctx, &budget)
		if f == nil {
			return budget.used, nil
		}

		lastErr = f.Err
		r.log.Error("Attempt failed", slog.String("op", name), slog.Any("error", f.Err))

		if r.onRetry != nil {
			r.onRetry(f.Counts)
		}

		if f.Stop {
			break
		}

		if f.Counts {
			budget.used++
			r.log.Error("Error counted", slog.String("op", name), slog.Int("try", budget.used))
		}

		if r.aborted != nil && r.aborted() {
			return budget.used, common.ErrAborted
		}

		if budget.used <= r.cfg.Retries {
			if err := r.sleep(ctx, r.backoff()); err != nil {
				return budget.used, err
			}
		}
	}

	return budget.used, fmt.Errorf("%w: %s: %w", common.ErrConnection, name, lastErr)
}

func (r *Retrier) backoff() time.Duration {
	window := r.cfg.DelayMax - r.cfg.DelayMin
	if window <= 0 {
		return r.cfg.DelayMin
	}

	return r.cfg.DelayMin + time.Duration(rand.Int64N(int64(window)+1))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
