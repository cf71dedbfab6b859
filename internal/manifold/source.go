// Package manifold adapts Manifold Markets into the raw market shape the
// catalog understands.
package manifold

import (
	"context"
	"fmt"
	"time"

	"github.com/jonnyspicer/mango"
	"github.com/rewired-gh/predictle/internal/logger"
	"github.com/rewired-gh/predictle/internal/models"
)

// SourceName is stamped on markets from this feed.
const SourceName = "manifold"

// searcher is the slice of the mango client the source needs.
type searcher interface {
	SearchMarkets(req mango.SearchMarketsRequest) (*[]mango.FullMarket, error)
}

// Source fetches open binary markets sorted by liquidity.
type Source struct {
	client searcher
	limit  int64
	now    func() time.Time
}

// NewSource wraps a mango client. A nil client uses mango's default instance.
func NewSource(client *mango.Client, limit int64) *Source {
	if client == nil {
		client = mango.DefaultClientInstance()
	}
	return newSource(client, limit)
}

func newSource(client searcher, limit int64) *Source {
	if limit <= 0 {
		limit = 200
	}
	return &Source{client: client, limit: limit, now: time.Now}
}

// Name identifies the feed.
func (s *Source) Name() string { return SourceName }

// FetchMarkets searches open binary markets. The mango client is not
// context-aware, so a cancelled ctx abandons the call rather than aborting it.
func (s *Source) FetchMarkets(ctx context.Context) ([]models.RawMarket, error) {
	type result struct {
		markets *[]mango.FullMarket
		err     error
	}
	done := make(chan result, 1)
	go func() {
		markets, err := s.client.SearchMarkets(mango.SearchMarketsRequest{
			Filter:       "open",
			ContractType: "BINARY",
			Sort:         "liquidity",
			Limit:        s.limit,
		})
		done <- result{markets, err}
	}()

	var r result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r = <-done:
	}
	if r.err != nil {
		return nil, fmt.Errorf("searching binary markets: %w", r.err)
	}
	if r.markets == nil {
		return nil, nil
	}

	now := s.now().UnixMilli()
	raws := make([]models.RawMarket, 0, len(*r.markets))
	for _, m := range *r.markets {
		raws = append(raws, toRaw(m, now))
	}
	logger.Debug("Scanned %d manifold binary markets", len(raws))
	return raws, nil
}

// toRaw maps a binary market onto a Yes/No outcome pair. Manifold quotes the
// YES probability only.
func toRaw(m mango.FullMarket, nowMillis int64) models.RawMarket {
	raw := models.RawMarket{
		"id":       m.Id,
		"question": m.Question,
		"outcomes": []any{
			map[string]any{"name": "Yes", "price": m.Probability},
			map[string]any{"name": "No", "price": 1 - m.Probability},
		},
		"resolved": m.IsResolved,
		"closed":   m.CloseTime > 0 && m.CloseTime <= nowMillis,
		"url":      m.Url,
	}
	if m.CreatedTime > 0 {
		raw["createdTime"] = m.CreatedTime
	}
	return raw
}
