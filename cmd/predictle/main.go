package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rewired-gh/predictle/internal/config"
	"github.com/rewired-gh/predictle/internal/feed"
	"github.com/rewired-gh/predictle/internal/game"
	"github.com/rewired-gh/predictle/internal/logger"
	"github.com/rewired-gh/predictle/internal/manifold"
	"github.com/rewired-gh/predictle/internal/market"
	"github.com/rewired-gh/predictle/internal/metrics"
	"github.com/rewired-gh/predictle/internal/models"
	"github.com/rewired-gh/predictle/internal/polymarket"
	"github.com/rewired-gh/predictle/internal/refresh"
	"github.com/rewired-gh/predictle/internal/scoring"
	"github.com/rewired-gh/predictle/internal/storage"
	"github.com/rewired-gh/predictle/internal/telegram"
)

var (
	configPath = flag.String("config", "", "Path to configuration file, e.g. configs/config.example.yaml")
	modeFlag   = flag.String("mode", "daily", "Game mode: daily or free")
)

func main() {
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	mode := models.Mode(*modeFlag)
	if !mode.Valid() {
		log.Fatalf("Invalid mode %q: must be daily or free", *modeFlag)
	}

	// Setup logging with level support
	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	if *configPath != "" {
		logger.Info("Configuration loaded from %s", *configPath)
	}

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, cleaning up...")
		cancel()
	}()

	if err := run(ctx, cfg, mode); err != nil {
		logger.Fatal("%v", err)
	}
	logger.Info("Goodbye")
}

// run wires the components and plays one session. Everything opened here is
// closed before it returns.
func run(ctx context.Context, cfg *config.Config, mode models.Mode) error {
	// Metrics
	var recorder *metrics.Recorder
	if cfg.Metrics.Enabled {
		recorder = metrics.New()
		go func() {
			if err := recorder.Serve(ctx, cfg.Metrics.Addr, cfg.Metrics.Path); err != nil {
				logger.Error("Metrics server failed: %v", err)
			}
		}()
	}

	// Initialize score storage
	store, err := storage.Open(ctx, storage.Options{
		Backend:         cfg.Storage.Backend,
		FilePath:        cfg.Storage.FilePath,
		DBPath:          cfg.Storage.DBPath,
		RedisAddr:       cfg.Storage.RedisAddr,
		RedisPassword:   cfg.Storage.RedisPassword,
		RedisDB:         cfg.Storage.RedisDB,
		FilePermissions: os.FileMode(cfg.Storage.FilePermissions),
		DirPermissions:  os.FileMode(cfg.Storage.DirPermissions),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close storage: %v", err)
		}
	}()

	// Market sources
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
		logger.Debug("Manifold source enabled")
	}
	multi := feed.NewMulti(sources...)

	// Catalog and refresher
	filter := market.NewFilter(market.FilterConfig{
		MinQuestionLength: cfg.Filter.MinQuestionLength,
		Denylist:          cfg.Filter.Denylist,
		StaleYearsFrom:    cfg.Filter.StaleYearsFrom,
		MaxAge:            cfg.Filter.MaxAge,
	}, time.Now)
	catalog := market.NewCatalog(filter, cfg.Pool.DailyRatio, cfg.Location(), time.Now)

	refreshOpts := []refresh.Option{}
	if recorder != nil {
		refreshOpts = append(refreshOpts, refresh.WithMetrics(recorder))
	}
	refresher := refresh.New(multi, catalog, refresh.Config{
		StepUnit:        cfg.Refresh.StepUnit,
		MaxBackoffSteps: cfg.Refresh.MaxBackoffSteps,
		Interval:        cfg.Refresh.Interval,
	}, refreshOpts...)
	defer refresher.Close()

	logger.Info("Fetching markets from %v", multi.Sources())
	if err := refresher.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Warn("Initial fetch did not produce markets: %v", err)
	}

	// Game session
	policyName := cfg.Game.FreePolicy
	if mode == models.ModeDaily {
		policyName = cfg.Game.DailyPolicy
	}
	policy, err := scoring.PolicyByName(policyName)
	if err != nil {
		return fmt.Errorf("invalid scoring policy: %w", err)
	}
	epoch, _ := time.Parse(time.DateOnly, cfg.Game.PuzzleEpoch)

	sessionOpts := []game.Option{}
	if recorder != nil {
		sessionOpts = append(sessionOpts, game.WithMetrics(recorder))
	}
	session, err := game.NewSession(ctx, game.Config{
		Mode:      mode,
		MaxRounds: cfg.Game.MaxRounds,
		Policy:    policy,
		Epoch:     epoch,
		Location:  cfg.Location(),
	}, refresher, store, sessionOpts...)
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}

	// Initialize Telegram share target
	var sharer shareTarget
	if cfg.Telegram.Enabled {
		client, err := telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.MaxRetries, cfg.Telegram.RetryDelayBase)
		if err != nil {
			return fmt.Errorf("failed to initialize Telegram client: %w", err)
		}
		sharer = client
		logger.Info("Telegram share target initialized successfully")
	} else {
		logger.Debug("Telegram sharing disabled")
	}

	g := &terminalGame{
		session:   session,
		refresher: refresher,
		sharer:    sharer,
		in:        os.Stdin,
		out:       os.Stdout,
	}
	if err := g.run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("game loop failed: %w", err)
	}
	return nil
}
