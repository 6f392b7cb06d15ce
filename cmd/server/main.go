package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/orderdesk/backend/config"
	httpDelivery "github.com/orderdesk/backend/internal/delivery/http"
	"github.com/orderdesk/backend/internal/domain"
	"github.com/orderdesk/backend/internal/infrastructure/cache"
	"github.com/orderdesk/backend/internal/infrastructure/sheets"
	"github.com/orderdesk/backend/internal/infrastructure/slack"
	"github.com/orderdesk/backend/internal/logging"
	"github.com/orderdesk/backend/internal/usecase"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := logging.Init(cfg.Log, cfg.Server.Environment); err != nil {
		return err
	}

	log.Info().
		Str("version", httpDelivery.Version).
		Str("environment", cfg.Server.Environment).
		Str("port", cfg.Server.Port).
		Str("cache", cfg.Cache.Type).
		Msg("starting orderdesk backend")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clock := clockwork.NewRealClock()

	// Initialize infrastructure dependencies
	store, err := newStore(ctx, cfg.Cache, clock)
	if err != nil {
		return err
	}
	defer store.Close()

	sheetsClient := sheets.NewClient(cfg.Sheets.SpreadsheetID, cfg.Sheets.BaseURL, cfg.RateLimit.Sheets)
	if cfg.Server.Environment == "development" {
		sheetsClient.SetDebug(true)
	}

	notifier := newNotifier(cfg.Slack)

	location, err := cfg.Schedule.Location()
	if err != nil {
		return err
	}

	// Initialize usecase layer
	matchingService := usecase.NewMatchingService(usecase.MatchConfig{
		SimilarityThreshold: cfg.Matching.SimilarityThreshold,
		OverlapThreshold:    cfg.Matching.OverlapThreshold,
		EnableDebugLogging:  cfg.Matching.EnableDebugLogging,
	})

	workflowService := usecase.NewWorkflowService(
		sheetsClient,
		notifier,
		store,
		matchingService,
		clock,
		usecase.WorkflowServiceConfig{
			BackofficeURL: cfg.Backoffice.URL,
			Worksheets: map[domain.Workflow]string{
				domain.WorkflowDeviations:    cfg.Sheets.DeviationsWorksheet,
				domain.WorkflowCancellations: cfg.Sheets.CancellationsWorksheet,
				domain.WorkflowClaims:        cfg.Sheets.ClaimsWorksheet,
			},
			DaysOffset: map[domain.Workflow]int{
				domain.WorkflowDeviations:    cfg.Schedule.DeviationsDaysOffset,
				domain.WorkflowCancellations: cfg.Schedule.CancellationsDaysOffset,
				domain.WorkflowClaims:        cfg.Schedule.ClaimsDaysOffset,
			},
			Location:  location,
			RunTTL:    cfg.Cache.RunTTL,
			LedgerTTL: cfg.Cache.LedgerTTL,
		},
	)

	similarity, overlap := matchingService.Thresholds()
	log.Info().
		Float64("similarity_threshold", similarity).
		Float64("overlap_threshold", overlap).
		Bool("debug", cfg.Matching.EnableDebugLogging).
		Str("timezone", location.String()).
		Msg("matching configured")

	// Create HTTP handler with dependencies
	handler := httpDelivery.NewHandler(workflowService, matchingService)
	router := httpDelivery.SetupRouter(cfg, handler)

	server := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", server.Addr).Msg("server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("failed to start server: %w", err)
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	return server.Shutdown(shutdownCtx)
}

// newStore builds the run and ledger store selected by cache.type
func newStore(ctx context.Context, cfg config.CacheConfig, clock clockwork.Clock) (domain.CacheRepository, error) {
	switch cfg.Type {
	case "redis":
		store, err := cache.NewRedisCache(ctx, cfg.RedisURL, cfg.RedisPrefix)
		if err != nil {
			return nil, err
		}
		log.Info().Str("prefix", cfg.RedisPrefix).Msg("using redis store")
		return store, nil

	case "bolt":
		store, err := cache.NewBoltCache(cfg.BoltPath, clock)
		if err != nil {
			return nil, err
		}
		removed, err := store.Purge()
		if err != nil {
			log.Warn().Err(err).Msg("failed to purge expired entries")
		}
		log.Info().Str("path", cfg.BoltPath).Int("purged", removed).Msg("using bolt store")
		return store, nil

	default:
		log.Info().Dur("cleanup_interval", cfg.CleanupInterval).Msg("using memory store")
		return cache.NewMemoryCache(clock, cfg.CleanupInterval), nil
	}
}

// newNotifier prefers the bot token, then the webhook, and falls back to the log
func newNotifier(cfg config.SlackConfig) domain.Notifier {
	switch {
	case cfg.Token != "":
		log.Info().Str("channel", cfg.Channel).Msg("slack notifications via bot token")
		return slack.NewBotClient(cfg.Token, cfg.Channel, cfg.APIBaseURL)
	case cfg.WebhookURL != "":
		log.Info().Msg("slack notifications via webhook")
		return slack.NewWebhookClient(cfg.WebhookURL)
	default:
		log.Warn().Msg("no slack destination configured, notifications go to the log")
		return slack.NewLogNotifier()
	}
}
