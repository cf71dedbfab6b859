package polymarket

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

const longToken = "0123456789abcdef0123456789abcdef"

func newTestClient(srv *httptest.Server, token string) *Client {
	return NewClient(Config{
		PublicURL:      srv.URL + "/public",
		AuthURL:        srv.URL + "/auth",
		Token:          token,
		MinTokenLength: 32,
		Timeout:        5 * time.Second,
		MaxRetries:     3,
		RetryDelayBase: time.Millisecond,
	})
}

func TestFetchMarkets_PayloadShapes(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"bare array", `[{"id":"1"},{"id":"2"}]`, 2},
		{"markets envelope", `{"markets":[{"id":"1"}]}`, 1},
		{"data envelope", `{"data":[{"id":"1"},{"id":"2"},{"id":"3"}]}`, 3},
		{"tickers envelope", `{"tickers":[{"ticker":"KX-1"}]}`, 1},
		{"non-object records skipped", `[{"id":"1"}, 7, "x", null]`, 1},
		{"empty array", `[]`, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			markets, err := newTestClient(srv, "").FetchMarkets(context.Background())
			if err != nil {
				t.Fatalf("FetchMarkets failed: %v", err)
			}
			if len(markets) != tt.want {
				t.Errorf("Expected %d markets, got %d", tt.want, len(markets))
			}
		})
	}
}

func TestFetchMarkets_KeepsNumbersExact(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id":"1","price":0.63,"createdAt":1760000000000}]`))
	}))
	defer srv.Close()

	markets, err := newTestClient(srv, "").FetchMarkets(context.Background())
	if err != nil {
		t.Fatalf("FetchMarkets failed: %v", err)
	}
	if p, ok := markets[0].Number("price"); !ok || p != 0.63 {
		t.Errorf("Expected price 0.63, got %v (%v)", p, ok)
	}
	if _, ok := markets[0].Time("createdAt"); !ok {
		t.Error("Expected createdAt to parse as epoch milliseconds")
	}
}

func TestFetchMarkets_AuthByTokenLength(t *testing.T) {
	tests := []struct {
		name     string
		token    string
		wantPath string
		wantAuth string
	}{
		{"no token", "", "/public", ""},
		{"short token", "abc123", "/public", ""},
		{"long token", longToken, "/auth", "Bearer " + longToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != tt.wantPath {
					t.Errorf("Expected path %s, got %s", tt.wantPath, r.URL.Path)
				}
				if got := r.Header.Get("Authorization"); got != tt.wantAuth {
					t.Errorf("Expected Authorization %q, got %q", tt.wantAuth, got)
				}
				w.Write([]byte(`[]`))
			}))
			defer srv.Close()

			if _, err := newTestClient(srv, tt.token).FetchMarkets(context.Background()); err != nil {
				t.Fatalf("FetchMarkets failed: %v", err)
			}
		})
	}
}

func TestFetchMarkets_Limit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("limit") != "50" || q.Get("active") != "true" {
			t.Errorf("Unexpected query: %s", r.URL.RawQuery)
		}
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := NewClient(Config{PublicURL: srv.URL + "/markets?active=true", Limit: 50, Timeout: time.Second})
	if _, err := c.FetchMarkets(context.Background()); err != nil {
		t.Fatalf("FetchMarkets failed: %v", err)
	}
}

func TestFetchMarkets_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`[{"id":"1"}]`))
	}))
	defer srv.Close()

	markets, err := newTestClient(srv, "").FetchMarkets(context.Background())
	if err != nil {
		t.Fatalf("Expected success on third attempt, got %v", err)
	}
	if len(markets) != 1 || calls.Load() != 3 {
		t.Errorf("Expected 1 market after 3 calls, got %d after %d", len(markets), calls.Load())
	}
}

func TestFetchMarkets_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"not found", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNotFound) }},
		{"always 500", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusInternalServerError) }},
		{"invalid json", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte(`{not json`)) }},
		{"unknown envelope", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte(`{"results":[]}`)) }},
		{"scalar payload", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte(`42`)) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			markets, err := newTestClient(srv, "").FetchMarkets(context.Background())
			if !errors.Is(err, ErrFetchFailed) {
				t.Errorf("Expected ErrFetchFailed, got %v", err)
			}
			if markets != nil {
				t.Errorf("Expected nil markets on failure, got %v", markets)
			}
		})
	}
}

func TestFetchMarkets_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := newTestClient(srv, "")
	c.cfg.RetryDelayBase = time.Hour

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err := c.FetchMarkets(ctx)
	if !errors.Is(err, ErrFetchFailed) {
		t.Errorf("Expected ErrFetchFailed, got %v", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Error("Expected the retry wait to stop on cancellation")
	}
}
