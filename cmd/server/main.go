package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/recipebox/backend/config"
	httpDelivery "github.com/recipebox/backend/internal/delivery/http"
	"github.com/recipebox/backend/internal/infrastructure/metrics"
	"github.com/recipebox/backend/internal/infrastructure/spoonacular"
	"github.com/recipebox/backend/internal/infrastructure/storage"
	"github.com/recipebox/backend/internal/logging"
	"github.com/recipebox/backend/internal/usecase"
)

const (
	version          = "1.0.0"
	redisKeyPrefix   = "recipebox"
	storageOpTimeout = 10 * time.Second
)

func main() {
	// Load configuration (.env first, then config.yaml and RECIPEBOX_* variables)
	cfg, err := config.Load()
	if err != nil {
		bootstrap := zerolog.New(os.Stderr).With().Timestamp().Logger()
		bootstrap.Fatal().Err(err).Msg("failed to load configuration")
	}

	logger := logging.New(cfg.Log.Level, cfg.Server.Environment, os.Stdout)
	logger.Info().
		Str("version", version).
		Str("environment", cfg.Server.Environment).
		Str("port", cfg.Server.Port).
		Str("storage", cfg.Storage.Type).
		Msg("starting recipebox backend")

	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("server stopped with error")
	}
	logger.Info().Msg("server exited")
}

func run(cfg *config.Config, logger zerolog.Logger) error {
	m := metrics.New()

	// Initialize infrastructure dependencies
	ctx, cancel := context.WithTimeout(context.Background(), storageOpTimeout)
	store, err := storage.New(ctx, storage.Config{
		Type:     cfg.Storage.Type,
		Path:     cfg.Storage.Path,
		RedisURL: cfg.Storage.RedisURL,
		Prefix:   redisKeyPrefix,
	}, logging.Component(logger, "storage"))
	cancel()
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn().Err(err).Msg("failed to close storage")
		}
	}()

	catalog := spoonacular.NewClient(spoonacular.ClientConfig{
		APIKey:          cfg.Spoonacular.APIKey,
		BaseURL:         cfg.Spoonacular.BaseURL,
		Timeout:         cfg.Spoonacular.Timeout,
		MaxRetries:      cfg.Spoonacular.MaxRetries,
		RequestsPerHour: cfg.RateLimit.Spoonacular,
		Logger:          logger,
		Metrics:         m,
	})
	logger.Info().
		Str("base_url", cfg.Spoonacular.BaseURL).
		Int("requests_per_hour", cfg.RateLimit.Spoonacular).
		Msg("catalog client configured")

	// Initialize usecase layer
	recipes := usecase.NewRecipeService(store, catalog, usecase.RecipeServiceConfig{
		SearchTTL:  cfg.Cache.SearchTTL,
		DetailsTTL: cfg.Cache.DetailsTTL,
		RandomTTL:  cfg.Cache.RandomTTL,
		Logger:     logger,
		Metrics:    m,
	})

	favorites := usecase.NewFavoritesStore(store, usecase.FavoritesConfig{
		DeleteLegacyAfterMigration: cfg.Favorites.DeleteLegacyAfterMigration,
		Logger:                     logger,
		Metrics:                    m,
	})
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), storageOpTimeout)
		defer cancel()
		if err := favorites.Close(ctx); err != nil {
			logger.Warn().Err(err).Msg("failed to flush favorites")
		}
	}()

	hydrateCtx, cancelHydrate := context.WithTimeout(context.Background(), storageOpTimeout)
	favorites.Hydrate(hydrateCtx)
	cancelHydrate()

	// Create HTTP handler and router
	handler := httpDelivery.NewHandler(recipes, favorites, cfg.Storage.Type)
	router := httpDelivery.SetupRouter(cfg, handler, logger, m)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case sig := <-quit:
		logger.Info().Str("signal", sig.String()).Msg("shutting down server")
	}

	ctx, cancel = context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}
