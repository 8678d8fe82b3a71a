package collector_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PriceSentinel/internal/collector"
)

func TestHTTPFetcher_Fetch(t *testing.T) {
	t.Parallel()

	headers := make(chan http.Header, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers <- r.Header.Clone()
		_, _ = w.Write([]byte("<html>ok</html>"))
	}))
	defer srv.Close()

	sets := []collector.HeaderSet{{UserAgent: "TestAgent/1.0", AcceptLanguage: "es-ES"}}
	f := collector.NewHTTPFetcher(collector.WithHeaderSets(sets))

	body, err := f.Fetch(context.Background(), collector.Request{Source: "amazon", URL: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, "<html>ok</html>", string(body))
	h := <-headers
	assert.Equal(t, "TestAgent/1.0", h.Get("User-Agent"))
	assert.Equal(t, "es-ES", h.Get("Accept-Language"))
	assert.Equal(t, "direct", f.Name())
}

func TestHTTPFetcher_RotatesWithinPool(t *testing.T) {
	t.Parallel()

	seen := make(chan string, 20)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen <- r.Header.Get("User-Agent")
	}))
	defer srv.Close()

	f := collector.NewHTTPFetcher()
	for range 20 {
		_, err := f.Fetch(context.Background(), collector.Request{URL: srv.URL})
		require.NoError(t, err)
	}
	close(seen)

	pool := map[string]bool{}
	for _, h := range collector.DefaultHeaderSets {
		pool[h.UserAgent] = true
	}
	for ua := range seen {
		assert.True(t, pool[ua], "user agent %q not in pool", ua)
	}
}

func TestHTTPFetcher_Failures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		handler http.HandlerFunc
		check   func(t *testing.T, err error)
	}{
		{
			name: "non-2xx status",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusServiceUnavailable)
			},
			check: func(t *testing.T, err error) {
				var se *collector.StatusError
				require.ErrorAs(t, err, &se)
				assert.Equal(t, http.StatusServiceUnavailable, se.Code)
			},
		},
		{
			name: "timeout",
			handler: func(w http.ResponseWriter, r *http.Request) {
				select {
				case <-r.Context().Done():
				case <-time.After(2 * time.Second):
				}
			},
			check: func(t *testing.T, err error) {
				assert.True(t, errors.Is(err, context.DeadlineExceeded))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			f := collector.NewHTTPFetcher(collector.WithTimeouts(100*time.Millisecond, 200*time.Millisecond))
			_, err := f.Fetch(context.Background(), collector.Request{URL: srv.URL})
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestHTTPFetcher_BodyCap(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 1000)))
	}))
	defer srv.Close()

	f := collector.NewHTTPFetcher(collector.WithMaxBodyBytes(100))
	body, err := f.Fetch(context.Background(), collector.Request{URL: srv.URL})
	require.NoError(t, err)
	assert.Len(t, body, 100)
}

func TestProxyFetcher(t *testing.T) {
	t.Parallel()

	queries := make(chan map[string]string, 1)
	proxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		queries <- map[string]string{
			"api_key":      q.Get("api_key"),
			"url":          q.Get("url"),
			"render":       q.Get("render"),
			"country_code": q.Get("country_code"),
		}
		_, _ = w.Write([]byte("via proxy"))
	}))
	defer proxy.Close()

	direct := &collector.MockFetcher{}
	f := collector.NewProxyFetcher(proxy.URL, "secret", direct)

	body, err := f.Fetch(context.Background(), collector.Request{
		Source: "mediamarkt",
		URL:    "https://www.mediamarkt.es/es/search.html?query=MSI",
		Render: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "via proxy", string(body))
	assert.Equal(t, map[string]string{
		"api_key":      "secret",
		"url":          "https://www.mediamarkt.es/es/search.html?query=MSI",
		"render":       "true",
		"country_code": "es",
	}, <-queries)
	assert.Empty(t, direct.Calls())
}

func TestProxyFetcher_FallsBackToDirect(t *testing.T) {
	t.Parallel()

	proxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer proxy.Close()

	target := "https://www.amazon.es/s?k=MSI"
	direct := &collector.MockFetcher{Pages: map[string][]byte{target: []byte("direct page")}}
	f := collector.NewProxyFetcher(proxy.URL, "secret", direct)

	body, err := f.Fetch(context.Background(), collector.Request{Source: "amazon", URL: target})
	require.NoError(t, err)
	assert.Equal(t, "direct page", string(body))
	require.Len(t, direct.Calls(), 1)
	assert.Equal(t, target, direct.Calls()[0].URL)
}

func TestProxyFetcher_ErrorsHideAPIKey(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	endpoint := srv.URL
	srv.Close()

	var logs bytes.Buffer
	log := slog.New(slog.NewTextHandler(&logs, nil))
	direct := &collector.MockFetcher{Errors: map[string]error{"https://www.amazon.es/dp/X": errors.New("blocked")}}
	f := collector.NewProxyFetcher(endpoint, "APIKEY123", direct, collector.WithProxyLogger(log))

	_, err := f.Fetch(context.Background(), collector.Request{Source: "amazon", URL: "https://www.amazon.es/dp/X"})
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "APIKEY123")
	assert.Contains(t, logs.String(), "fetch proxy failed")
	assert.NotContains(t, logs.String(), "APIKEY123")
}
