package httpadapter

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jgivc/mfdl/internal/common"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func newTestRetrier(retries int, aborted func() bool) (*Retrier, *int) {
	r := NewRetrier(RetryConfig{Retries: retries, DelayMin: time.Millisecond, DelayMax: 2 * time.Millisecond}, aborted, testLogger())
	sleeps := new(int)
	r.sleep = func(ctx context.Context, d time.Duration) error {
		*sleeps++
		return nil
	}

	return r, sleeps
}

func TestRetrierCountsGenericFailures(t *testing.T) {
	r, sleeps := newTestRetrier(5, nil)

	calls := 0
	used, err := r.Do(context.Background(), "test", func(ctx context.Context, b *Budget) *Failure {
		calls++
		if calls <= 3 {
			return Classify(common.NewRequestError(common.EUNK), http.StatusOK)
		}
		return nil
	})

	require.NoError(t, err)
	require.Equal(t, 3, used)
	require.Equal(t, 4, calls)
	require.Equal(t, 3, *sleeps)
}

func TestRetrierForbiddenNeverCounts(t *testing.T) {
	r, _ := newTestRetrier(1, nil)

	calls := 0
	used, err := r.Do(context.Background(), "test", func(ctx context.Context, b *Budget) *Failure {
		calls++
		switch {
		case calls <= 10:
			return Classify(errors.New("forbidden"), http.StatusForbidden)
		case calls <= 12:
			return Classify(&TransportError{Op: "payload", Err: io.ErrUnexpectedEOF}, 0)
		}
		return nil
	})

	require.NoError(t, err)
	require.Equal(t, 0, used)
	require.Equal(t, 13, calls)
}

func TestRetrierExhausted(t *testing.T) {
	r, sleeps := newTestRetrier(2, nil)

	calls := 0
	used, err := r.Do(context.Background(), "test", func(ctx context.Context, b *Budget) *Failure {
		calls++
		return Classify(errors.New("boom"), 0)
	})

	require.True(t, errors.Is(err, common.ErrConnection))
	require.Equal(t, 3, used)
	require.Equal(t, 3, calls)
	// no backoff after the final counted failure
	require.Equal(t, 2, *sleeps)
}

func TestRetrierStop(t *testing.T) {
	r, _ := newTestRetrier(10, nil)

	calls := 0
	_, err := r.Do(context.Background(), "test", func(ctx context.Context, b *Budget) *Failure {
		calls++
		f := Classify(common.NewRequestError(common.ESESSIONTOKEN), http.StatusForbidden)
		f.Stop = true
		return f
	})

	require.True(t, errors.Is(err, common.ErrConnection))
	require.Equal(t, 1, calls)
}

func TestRetrierAbort(t *testing.T) {
	aborted := false
	r, sleeps := newTestRetrier(10, func() bool { return aborted })

	_, err := r.Do(context.Background(), "test", func(ctx context.Context, b *Budget) *Failure {
		aborted = true
		return Classify(errors.New("boom"), 0)
	})

	require.True(t, errors.Is(err, common.ErrAborted))
	require.Equal(t, 0, *sleeps)
}

func TestRetrierBudgetReset(t *testing.T) {
	r, _ := newTestRetrier(1, nil)

	calls := 0
	used, err := r.Do(context.Background(), "test", func(ctx context.Context, b *Budget) *Failure {
		calls++
		if calls > 1 {
			// bytes flowed again
			b.Reset()
		}
		if calls < 5 {
			return Classify(errors.New("stall"), 0)
		}
		return nil
	})

	require.NoError(t, err)
	require.Equal(t, 5, calls)
	require.Equal(t, 0, used)
}

func TestRetrierBackoffWindow(t *testing.T) {
	r := NewRetrier(RetryConfig{DelayMin: 4 * time.Second, DelayMax: 8 * time.Second}, nil, testLogger())
	for i := 0; i < 100; i++ {
		d := r.backoff()
		require.GreaterOrEqual(t, d, 4*time.Second)
		require.LessOrEqual(t, d, 8*time.Second)
	}
}

func TestCheckStatus(t *testing.T) {
	var te *TransportError
	var se *StatusError

	require.NoError(t, CheckStatus(&http.Response{StatusCode: http.StatusOK}))

	err := CheckStatus(&http.Response{StatusCode: http.StatusForbidden})
	require.True(t, errors.As(err, &te))
	require.True(t, errors.As(err, &se))
	require.False(t, Classify(err, http.StatusForbidden).Counts)

	err = CheckStatus(&http.Response{StatusCode: http.StatusBadGateway})
	require.True(t, errors.As(err, &te))

	err = CheckStatus(&http.Response{StatusCode: http.StatusNotFound})
	require.False(t, errors.As(err, &te))
	require.True(t, Classify(err, http.StatusNotFound).Counts)
}

type countingQueue struct {
	urls []string
}

func (q *countingQueue) Wait(ctx context.Context, rawURL string) error {
	q.urls = append(q.urls, rawURL)
	return nil
}

func TestRequesterSessionHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "https://www.mediafire.com/", r.Header.Get("Referer"))
		assert.Equal(t, "gzip", r.Header.Get("Accept-Encoding"))

		c, err := r.Cookie("ukey")
		if assert.NoError(t, err) {
			assert.Equal(t, "secret", c.Value)
		}

		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	cl, err := NewHTTPClient(ClientConfig{
		Timeout:   5 * time.Second,
		MaxJobs:   2,
		UserAgent: "test-agent",
		Headers:   map[string]string{"Referer": "https://www.mediafire.com/"},
		Cookies:   map[string]string{"ukey": "secret"},
	})
	require.NoError(t, err)

	queue := &countingQueue{}
	req := NewRequester(cl, queue, nil, testLogger())

	resp, err := req.Get(context.Background(), "file", srv.URL+"/x", map[string]string{"Accept-Encoding": "gzip"})
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, []string{srv.URL + "/x"}, queue.urls)
}

func TestRequesterConnectError(t *testing.T) {
	cl, err := NewHTTPClient(ClientConfig{Timeout: time.Second})
	require.NoError(t, err)

	req := NewRequester(cl, nil, nil, testLogger())
	_, err = req.Get(context.Background(), "api", "http://127.0.0.1:1/", nil)

	var te *TransportError
	require.True(t, errors.As(err, &te))
	require.Equal(t, "connect", te.Op)
}

func TestNewHTTPClientBadProxy(t *testing.T) {
	_, err := NewHTTPClient(ClientConfig{Proxy: "://bad"})
	require.Error(t, err)
}

func TestRequesterInvalidURLCounts(t *testing.T) {
	cl, err := NewHTTPClient(ClientConfig{Timeout: time.Second})
	require.NoError(t, err)

	req := NewRequester(cl, nil, nil, testLogger())

	for _, link := range []string{"", "ftp://www.mediafire.com/file/x", "mediafire.com/file/x"} {
		t.Run(link, func(t *testing.T) {
			_, err := req.Get(context.Background(), "file", link, nil)
			require.Error(t, err)

			var te *TransportError
			require.False(t, errors.As(err, &te))
			require.True(t, Classify(err, 0).Counts)
		})
	}

	r, _ := newTestRetrier(2, nil)
	calls := 0
	used, err := r.Do(context.Background(), "empty link", func(ctx context.Context, b *Budget) *Failure {
		calls++

		resp, err := req.Get(ctx, "file", "", nil)
		if err != nil {
			return Classify(err, 0)
		}
		resp.Body.Close()

		return nil
	})

	require.True(t, errors.Is(err, common.ErrConnection))
	require.Equal(t, 3, used)
	require.Equal(t, 3, calls)
}
