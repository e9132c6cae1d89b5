// Package fetch retrieves registry metadata over HTTP with retry, DNS
// caching and per-host circuit breaking.
package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/cenk/backoff"
	"github.com/rs/dnscache"
)

var (
	ErrNotFound     = errors.New("resource not found")
	ErrUnauthorized = errors.New("registry rejected credentials")
	ErrRateLimited  = errors.New("rate limited by upstream")
	ErrUpstreamDown = errors.New("upstream registry unavailable")
)

// AcceptAbbreviated asks npm-compatible registries for the corgi packument,
// which carries dist-tags and versions without per-version manifests.
const AcceptAbbreviated = "application/vnd.npm.install-v1+json; q=1.0, application/json; q=0.8, */*"

// StatusError is a non-200 answer. It matches the sentinel for its class
// of status code under errors.Is.
type StatusError struct {
	URL        string
	Code       int
	Body       string
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("GET %s: status %d", e.URL, e.Code)
	}
	return fmt.Sprintf("GET %s: status %d: %s", e.URL, e.Code, e.Body)
}

func (e *StatusError) Unwrap() error {
	switch {
	case e.Code == http.StatusNotFound:
		return ErrNotFound
	case e.Code == http.StatusUnauthorized || e.Code == http.StatusForbidden:
		return ErrUnauthorized
	case e.Code == http.StatusTooManyRequests:
		return ErrRateLimited
	case e.Code >= 500:
		return ErrUpstreamDown
	}
	return nil
}

func (e *StatusError) retryable() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

// Response is a successful upstream response. The caller closes Body.
type Response struct {
	Body io.ReadCloser
}

// FetcherInterface is what registry clients need from a fetcher.
type FetcherInterface interface {
	Fetch(ctx context.Context, url string) (*Response, error)
}

// Fetcher performs GET requests against one registry.
type Fetcher struct {
	client     *http.Client
	header     http.Header
	maxRetries int
	baseDelay  time.Duration
}

// Option configures a Fetcher.
type Option func(*Fetcher)

func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) {
		f.client = c
	}
}

func WithUserAgent(ua string) Option {
	return func(f *Fetcher) {
		f.header.Set("User-Agent", ua)
	}
}

func WithAccept(accept string) Option {
	return func(f *Fetcher) {
		f.header.Set("Accept", accept)
	}
}

// WithToken sends an npm auth token as a bearer credential. An empty token
// is ignored.
func WithToken(token string) Option {
	return func(f *Fetcher) {
		if token != "" {
			f.header.Set("Authorization", "Bearer "+token)
		}
	}
}

// WithMaxRetries sets how many times a rate-limited or failed request is
// repeated.
func WithMaxRetries(n int) Option {
	return func(f *Fetcher) {
		f.maxRetries = n
	}
}

// WithBaseDelay sets the first retry delay; later delays grow exponentially.
func WithBaseDelay(d time.Duration) Option {
	return func(f *Fetcher) {
		f.baseDelay = d
	}
}

var sharedResolver = newResolver()

func newResolver() *dnscache.Resolver {
	r := &dnscache.Resolver{}
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			r.Refresh(true)
		}
	}()
	return r
}

var dialer = &net.Dialer{Timeout: 30 * time.Second, KeepAlive: 30 * time.Second}

// dialCached resolves through the shared cache and tries each address.
func dialCached(ctx context.Context, network, addr string) (net.Conn, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, err
	}
	ips, err := sharedResolver.LookupHost(ctx, host)
	if err != nil {
		return nil, err
	}
	var lastErr error
	for _, ip := range ips {
		conn, err := dialer.DialContext(ctx, network, net.JoinHostPort(ip, port))
		if err == nil {
			return conn, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("dialing %s: %w", host, lastErr)
}

// NewFetcher creates a Fetcher with a DNS-caching transport.
func NewFetcher(opts ...Option) *Fetcher {
	f := &Fetcher{
		client: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				DialContext:         dialCached,
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConnsPerHost: 16,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		header:     http.Header{"User-Agent": {"versync/1.0"}, "Accept": {"application/json"}},
		maxRetries: 3,
		baseDelay:  500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Fetcher) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = f.baseDelay
	b.RandomizationFactor = 0.1
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// Fetch GETs url, retrying 429 and 5xx answers. A Retry-After header
// longer than the backoff delay is honoured.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*Response, error) {
	delays := f.newBackOff()
	for attempt := 0; ; attempt++ {
		resp, err := f.get(ctx, url)
		if err == nil {
			return resp, nil
		}
		var serr *StatusError
		if !errors.As(err, &serr) || !serr.retryable() || attempt >= f.maxRetries {
			return nil, err
		}

		wait := max(delays.NextBackOff(), serr.RetryAfter)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
}

func (f *Fetcher) get(ctx context.Context, url string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header = f.header.Clone()

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", url, err)
	}
	if resp.StatusCode == http.StatusOK {
		return &Response{Body: resp.Body}, nil
	}
	defer func() { _ = resp.Body.Close() }()

	serr := &StatusError{URL: url, Code: resp.StatusCode}
	if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs > 0 {
		serr.RetryAfter = time.Duration(secs) * time.Second
	}
	if serr.Unwrap() == nil {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		serr.Body = string(body)
	}
	return nil, serr
}

// GetJSON fetches url with f and decodes the body into v.
func GetJSON(ctx context.Context, f FetcherInterface, url string, v any) error {
	resp, err := f.Fetch(ctx, url)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decoding %s: %w", url, err)
	}
	return nil
}
