// Package feed combines upstream market sources into one fetch.
package feed

import (
	"context"
	"errors"
	"fmt"

	"github.com/rewired-gh/predictle/internal/logger"
	"github.com/rewired-gh/predictle/internal/models"
	"golang.org/x/sync/errgroup"
)

// ErrNoSources is returned by a Multi with nothing to fetch from.
var ErrNoSources = errors.New("no market sources configured")

// Source is one upstream market feed.
type Source interface {
	Name() string
	FetchMarkets(ctx context.Context) ([]models.RawMarket, error)
}

// Multi fetches every source concurrently. The batch fails only when every
// source fails.
type Multi struct {
	sources []Source
}

// NewMulti creates a Multi over sources, in priority order.
func NewMulti(sources ...Source) *Multi {
	return &Multi{sources: sources}
}

// Sources returns the configured source names.
func (m *Multi) Sources() []string {
	names := make([]string, len(m.sources))
	for i, s := range m.sources {
		names[i] = s.Name()
	}
	return names
}

// Fetch returns one batch per successful source, in source order.
func (m *Multi) Fetch(ctx context.Context) ([]models.Batch, error) {
	if len(m.sources) == 0 {
		return nil, ErrNoSources
	}

	results := make([][]models.RawMarket, len(m.sources))
	errs := make([]error, len(m.sources))

	var g errgroup.Group
	for i, src := range m.sources {
		g.Go(func() error {
			markets, err := src.FetchMarkets(ctx)
			if err != nil {
				errs[i] = fmt.Errorf("%s: %w", src.Name(), err)
				return nil
			}
			results[i] = markets
			return nil
		})
	}
	_ = g.Wait()

	batches := make([]models.Batch, 0, len(m.sources))
	for i, src := range m.sources {
		if errs[i] != nil {
			logger.Warn("Source %s failed: %v", src.Name(), errs[i])
			continue
		}
		batches = append(batches, models.Batch{Source: src.Name(), Markets: results[i]})
	}
	if len(batches) == 0 {
		return nil, errors.Join(errs...)
	}
	return batches, nil
}
