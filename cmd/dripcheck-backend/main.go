package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/raine/drip-check/config"
	"github.com/raine/drip-check/internal/backend"
	"github.com/raine/drip-check/internal/llm"
	"github.com/raine/drip-check/internal/logging"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const (
	logFileName     = "dripcheck-backend.log"
	shutdownTimeout = 15 * time.Second
)

func main() {
	config.LoadEnvFile()

	closeLog, err := logging.Setup(logFileName, zerolog.InfoLevel)
	if err != nil {
		logging.Fatal("%v", err)
	}
	defer closeLog()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal("invalid configuration: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	generator, err := llm.NewGeminiGenerator(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		logging.Fatal("failed to initialize gemini generator: %v", err)
	}
	log.Info().Str("model", cfg.GeminiModel).Msg("gemini generator initialized")

	var gen llm.Generator = generator
	if cfg.CachePath != "none" {
		cache, err := llm.NewSQLiteCache(cfg.CachePath)
		if err != nil {
			logging.Fatal("failed to open analysis cache: %v", err)
		}
		defer cache.Close()
		gen = llm.NewCachedGenerator(generator, cache)
		log.Info().Str("cachePath", cfg.CachePath).Msg("analysis caching enabled")
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           backend.New(gen, backend.Options{RateLimit: cfg.RateLimit}).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Str("addr", cfg.ListenAddr).Int("rateLimit", cfg.RateLimit).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("shutdown with error")
	} else {
		log.Info().Msg("shutdown complete")
	}
}
