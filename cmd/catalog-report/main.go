package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"github.com/rewired-gh/predictle/internal/config"
	"github.com/rewired-gh/predictle/internal/feed"
	"github.com/rewired-gh/predictle/internal/logger"
	"github.com/rewired-gh/predictle/internal/manifold"
	"github.com/rewired-gh/predictle/internal/market"
	"github.com/rewired-gh/predictle/internal/polymarket"
)

var (
	configPath = flag.String("config", "", "Path to configuration file")
	top        = flag.Int("top", 20, "Number of markets to list per pool")
	timeout    = flag.Duration("timeout", time.Minute, "Overall fetch timeout")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	logger.Init(cfg.Logging.Level, "text")

	sources := []feed.Source{polymarket.NewClient(polymarket.Config{
		PublicURL:      cfg.Feed.PublicURL,
		AuthURL:        cfg.Feed.AuthURL,
		Token:          cfg.Feed.Token,
		MinTokenLength: cfg.Feed.MinTokenLength,
		Limit:          cfg.Feed.Limit,
		Timeout:        cfg.Feed.Timeout,
		MaxRetries:     cfg.Feed.MaxRetries,
		RetryDelayBase: cfg.Feed.RetryDelayBase,
	})}
	if cfg.Feed.Manifold.Enabled {
		sources = append(sources, manifold.NewSource(nil, cfg.Feed.Manifold.Limit))
	}
	multi := feed.NewMulti(sources...)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	batches, err := multi.Fetch(ctx)
	if err != nil {
		log.Fatalf("Failed to fetch markets: %v", err)
	}

	filter := market.NewFilter(market.FilterConfig{
		MinQuestionLength: cfg.Filter.MinQuestionLength,
		Denylist:          cfg.Filter.Denylist,
		StaleYearsFrom:    cfg.Filter.StaleYearsFrom,
		MaxAge:            cfg.Filter.MaxAge,
	}, time.Now)
	catalog := market.NewCatalog(filter, cfg.Pool.DailyRatio, cfg.Location(), time.Now)
	pools, stats := catalog.BuildBatches(batches)

	writeReport(os.Stdout, batches, pools, stats, *top)
}
