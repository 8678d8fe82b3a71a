package collector

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"time"
)

const (
	DefaultTimeout       = 8 * time.Second
	DefaultRenderTimeout = 15 * time.Second
	defaultMaxBodyBytes  = 8 << 20
)

// HeaderSet is one browser identity presented to upstream sites.
type HeaderSet struct {
	UserAgent      string
	AcceptLanguage string
}

// DefaultHeaderSets is the identity pool used when none is configured.
var DefaultHeaderSets = []HeaderSet{
	{
		UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
		AcceptLanguage: "es-ES,es;q=0.9,en;q=0.8",
	},
	{
		UserAgent:      "Mozilla/5.0 (Macintosh; Intel Mac OS X 14_4) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
		AcceptLanguage: "es-ES,es;q=0.9",
	},
	{
		UserAgent:      "Mozilla/5.0 (X11; Linux x86_64; rv:125.0) Gecko/20100101 Firefox/125.0",
		AcceptLanguage: "es-ES,es;q=0.8,en-US;q=0.5,en;q=0.3",
	},
	{
		UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36 Edg/124.0.0.0",
		AcceptLanguage: "es-ES,es;q=0.9,en;q=0.7",
	},
}

// HTTPFetcher fetches pages directly, rotating browser identities.
type HTTPFetcher struct {
	client        *http.Client
	headerSets    []HeaderSet
	timeout       time.Duration
	renderTimeout time.Duration
	maxBody       int64
}

// HTTPOption configures an HTTPFetcher.
type HTTPOption func(*HTTPFetcher)

// WithTimeouts sets the per-request timeouts for plain and render requests.
func WithTimeouts(plain, render time.Duration) HTTPOption {
	return func(f *HTTPFetcher) {
		if plain > 0 {
			f.timeout = plain
		}
		if render > 0 {
			f.renderTimeout = render
		}
	}
}

// WithHeaderSets replaces the identity pool.
func WithHeaderSets(sets []HeaderSet) HTTPOption {
	return func(f *HTTPFetcher) {
		if len(sets) > 0 {
			f.headerSets = sets
		}
	}
}

// WithOutboundProxy routes requests through an HTTP proxy. Unparseable
// URLs are ignored.
func WithOutboundProxy(proxyURL string) HTTPOption {
	return func(f *HTTPFetcher) {
		if proxyURL == "" {
			return
		}
		if u, err := url.Parse(proxyURL); err == nil {
			f.client.Transport = &http.Transport{Proxy: http.ProxyURL(u)}
		}
	}
}

// WithMaxBodyBytes caps how much of a response body is read.
func WithMaxBodyBytes(n int64) HTTPOption {
	return func(f *HTTPFetcher) {
		if n > 0 {
			f.maxBody = n
		}
	}
}

// NewHTTPFetcher creates a direct fetcher.
func NewHTTPFetcher(opts ...HTTPOption) *HTTPFetcher {
	f := &HTTPFetcher{
		client:        &http.Client{Transport: &http.Transport{Proxy: http.ProxyFromEnvironment}},
		headerSets:    DefaultHeaderSets,
		timeout:       DefaultTimeout,
		renderTimeout: DefaultRenderTimeout,
		maxBody:       defaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *HTTPFetcher) Name() string { return "direct" }

// Fetch performs one GET bounded by the timeout for req.
func (f *HTTPFetcher) Fetch(ctx context.Context, req Request) ([]byte, error) {
	timeout := f.timeout
	if req.Render {
		timeout = f.renderTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	h := f.headerSets[rand.IntN(len(f.headerSets))]
	httpReq.Header.Set("User-Agent", h.UserAgent)
	httpReq.Header.Set("Accept-Language", h.AcceptLanguage)
	httpReq.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	return do(f.client, httpReq, f.maxBody)
}

func do(client *http.Client, req *http.Request, maxBody int64) ([]byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", req.URL.Host, withoutURL(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetching %s: %w", req.URL.Host, &StatusError{Code: resp.StatusCode})
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", req.URL.Host, err)
	}
	return body, nil
}

// withoutURL drops the *url.Error wrapper, whose message repeats the request
// URL with its query, credentials included.
func withoutURL(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return uerr.Err
	}
	return err
}
