package polymarket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rewired-gh/predictle/internal/logger"
	"github.com/rewired-gh/predictle/internal/models"
)

// ErrFetchFailed wraps every transport, status and decode failure.
var ErrFetchFailed = errors.New("market fetch failed")

// Source name stamped on markets from this feed.
const SourceName = "polymarket"

// Envelope keys a feed may nest its market list under, in lookup order.
var envelopeKeys = []string{"markets", "data", "tickers"}

// Config holds client settings.
type Config struct {
	PublicURL      string
	AuthURL        string
	Token          string
	MinTokenLength int
	Limit          int
	Timeout        time.Duration
	MaxRetries     int
	RetryDelayBase time.Duration
}

// Client provides access to a Polymarket-style market feed
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// NewClient creates a new feed client
func NewClient(cfg Config) *Client {
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 1
	}
	if cfg.MinTokenLength < 1 {
		cfg.MinTokenLength = 32
	}
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// Name identifies the feed.
func (c *Client) Name() string { return SourceName }

// useAuth reports whether the token is long enough to be a real credential.
func (c *Client) useAuth() bool {
	return c.cfg.Token != "" && len(c.cfg.Token) >= c.cfg.MinTokenLength && c.cfg.AuthURL != ""
}

// FetchMarkets retrieves the raw market list. Records that are not JSON
// objects are skipped.
func (c *Client) FetchMarkets(ctx context.Context) ([]models.RawMarket, error) {
	endpoint, token := c.cfg.PublicURL, ""
	if c.useAuth() {
		endpoint, token = c.cfg.AuthURL, c.cfg.Token
	}
	endpoint, err := withLimit(endpoint, c.cfg.Limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}

	resp, err := c.doRequest(ctx, endpoint, token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	var payload any
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: failed to decode markets: %v", ErrFetchFailed, err)
	}

	items, ok := unwrap(payload)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected payload shape %T", ErrFetchFailed, payload)
	}

	markets := make([]models.RawMarket, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		markets = append(markets, models.RawMarket(obj))
	}
	if skipped := len(items) - len(markets); skipped > 0 {
		logger.Debug("Skipped %d non-object market records", skipped)
	}
	return markets, nil
}

// unwrap accepts a bare array or an object holding one under an envelope key.
func unwrap(payload any) ([]any, bool) {
	switch v := payload.(type) {
	case []any:
		return v, true
	case map[string]any:
		for _, key := range envelopeKeys {
			if list, ok := v[key].([]any); ok {
				return list, true
			}
		}
	}
	return nil, false
}

func withLimit(endpoint string, limit int) (string, error) {
	if limit <= 0 {
		return endpoint, nil
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid feed URL: %w", err)
	}
	q := u.Query()
	q.Set("limit", strconv.Itoa(limit))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// doRequest performs HTTP request with retry logic
func (c *Client) doRequest(ctx context.Context, endpoint, token string) (*http.Response, error) {
	var lastErr error

	for i := 0; i < c.cfg.MaxRetries; i++ {
		if i > 0 {
			delay := time.Duration(i) * c.cfg.RetryDelayBase
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}

		req.Header.Set("Accept", "application/json")
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			continue
		}

		if resp.StatusCode >= 500 {
			resp.Body.Close()
			lastErr = fmt.Errorf("server error: %d", resp.StatusCode)
			logger.Warn("Feed returned %d, attempt %d/%d", resp.StatusCode, i+1, c.cfg.MaxRetries)
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			resp.Body.Close()
			return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
		}

		return resp, nil
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}
