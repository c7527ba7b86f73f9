package httpadapter

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"
)

type ClientConfig struct {
	Timeout   time.Duration
	Proxy     string
	MaxJobs   int
	UserAgent string
	Headers   map[string]string
	Cookies   map[string]string
}

// NewHTTPClient builds the single client shared by every request of a run.
// http, https and socks5 proxies are supported.
func NewHTTPClient(cfg ClientConfig) (*http.Client, error) {
	proxyFunc := http.ProxyFromEnvironment
	if cfg.Proxy != "" {
		proxyURL, err := url.Parse(cfg.Proxy)
		if err != nil {
			return nil, fmt.Errorf("cannot parse proxy url: %w", err)
		}
		proxyFunc = http.ProxyURL(proxyURL)
	}

	maxJobs := cfg.MaxJobs
	if maxJobs < 1 {
		maxJobs = 1
	}

	transport := &http.Transport{
		Proxy: proxyFunc,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		MaxConnsPerHost:       maxJobs + 1,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ResponseHeaderTimeout: cfg.Timeout,
		// gzip is negotiated explicitly where the payload may be an obfuscation page
		DisableCompression: true,
	}

	return &http.Client{
		Transport: &sessionTransport{
			base:      transport,
			userAgent: cfg.UserAgent,
			headers:   cfg.Headers,
			cookies:   cfg.Cookies,
		},
	}, nil
}

// sessionTransport stamps session wide headers and cookies on every request.
type sessionTransport struct {
	base      http.RoundTripper
	userAgent string
	headers   map[string]string
	cookies   map[string]string
}

func (t *sessionTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())

	if t.userAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", t.userAgent)
	}

	if req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	for k, v := range t.headers {
		req.Header.Set(k, v)
	}

	for k, v := range t.cookies {
		req.AddCookie(&http.Cookie{Name: k, Value: v})
	}

	return t.base.RoundTrip(req)
}
