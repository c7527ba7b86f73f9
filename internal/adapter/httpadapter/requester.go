package httpadapter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
)

type RequestQueue interface {
	Wait(ctx context.Context, rawURL string) error
}

type Metrics interface {
	ObserveRequest(kind string, status int)
}

// Requester issues GET requests through the shared client, consulting the
// request queue before each one. A nil queue disables spacing.
type Requester struct {
	cl      *http.Client
	queue   RequestQueue
	metrics Metrics
	log     *slog.Logger
}

func NewRequester(cl *http.Client, queue RequestQueue, metrics Metrics, log *slog.Logger) *Requester {
	return &Requester{
		cl:      cl,
		queue:   queue,
		metrics: metrics,
		log:     log.With(slog.String("item", "Requester")),
	}
}

// Get sends a GET request. kind labels the request in metrics ("api", "file").
func (r *Requester) Get(ctx context.Context, kind, rawURL string, headers map[string]string) (*http.Response, error) {
	if r.queue != nil {
		if err := r.queue.Wait(ctx, rawURL); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("cannot create request: %w", err)
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	r.log.Debug("Send request", slog.String("kind", kind), slog.String("url", rawURL))

	resp, err := r.cl.Do(req)
	if err != nil {
		if r.metrics != nil {
			r.metrics.ObserveRequest(kind, 0)
		}

		if isNetworkError(err) {
			return nil, &TransportError{Op: "connect", Err: err}
		}

		return nil, fmt.Errorf("cannot send request: %w", err)
	}

	if r.metrics != nil {
		r.metrics.ObserveRequest(kind, resp.StatusCode)
	}

	return resp, nil
}

// isNetworkError reports whether err came from the network rather than from
// the request itself (bad scheme, malformed url and alike).
func isNetworkError(err error) bool {
	var ue *url.Error
	if errors.As(err, &ue) {
		err = ue.Err
	}

	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return true
	}

	var ne net.Error

	return errors.As(err, &ne)
}
