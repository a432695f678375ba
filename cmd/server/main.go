// Package main is the entrypoint for the Veriscope analysis server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/videoforensics/veriscope/internal/api"
	"github.com/videoforensics/veriscope/internal/config"
	"github.com/videoforensics/veriscope/internal/database"
	"github.com/videoforensics/veriscope/internal/factcheck"
	"github.com/videoforensics/veriscope/internal/fusion"
	"github.com/videoforensics/veriscope/internal/llm"
	"github.com/videoforensics/veriscope/internal/pipeline"
	"github.com/videoforensics/veriscope/internal/probe"
	"github.com/videoforensics/veriscope/internal/search"
	"github.com/videoforensics/veriscope/internal/structuring"
	"github.com/videoforensics/veriscope/internal/understanding"
)

const version = "1.0.0"

const shutdownTimeout = 30 * time.Second

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	generateConfig := flag.Bool("generate-config", false, "write a sample config file and exit")
	flag.Parse()

	if *generateConfig {
		if err := config.GenerateSample(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "failed to generate config: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Sample config written to %s\n", *configPath)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	setupLogging(cfg.Logging)

	if err := run(cfg); err != nil {
		log.Fatal().Err(err).Msg("Server failed")
	}
}

func setupLogging(cfg config.LoggingConfig) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format != "json" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := database.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()
	log.Info().Str("path", cfg.Database.Path).Msg("Database ready")

	provider, err := llm.NewProvider(&cfg.LLM)
	if err != nil {
		return fmt.Errorf("create LLM provider: %w", err)
	}
	log.Info().Str("provider", provider.Name()).Msg("LLM provider initialized")

	video, err := understanding.NewClient(&cfg.Understanding)
	if err != nil {
		return fmt.Errorf("create understanding client: %w", err)
	}

	var searchClients []search.Client
	if cfg.Search.DuckDuckGo {
		searchClients = append(searchClients, search.NewDuckDuckGoClient())
	}
	if cfg.Search.Wikipedia {
		searchClients = append(searchClients, search.NewWikipediaClient())
	}
	aggregated := search.NewAggregatedClient(searchClients...)
	if !aggregated.HasClients() {
		log.Warn().Msg("No search sources configured, fact-checks will lack web evidence")
	}

	engine := structuring.NewEngine(provider)
	checker := factcheck.NewChecker(aggregated, engine, cfg.Pipeline.FactCheckConcurrency)
	scorer := fusion.NewScorer(thresholds(cfg))
	prober := probe.NewFFProbe("")

	pipe := pipeline.New(&cfg.Pipeline, prober, video, engine, checker, scorer)

	health := api.HealthInfo{
		Version:       version,
		LLMProvider:   provider.Name(),
		Understanding: video.Name(),
		SearchSources: sourceNames(searchClients),
	}
	router := api.NewRouter(cfg, pipe, store, health)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: time.Duration(cfg.Pipeline.JobTimeoutSeconds+30) * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		log.Info().Msg("Shutdown signal received, draining connections")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	log.Info().Msg("Server stopped gracefully")
	return nil
}

func thresholds(cfg *config.Config) fusion.Thresholds {
	th := fusion.DefaultThresholds()
	if t := cfg.Pipeline.Thresholds; t.ModerateRisk > 0 {
		th.ModerateRisk = t.ModerateRisk
		th.HighRisk = t.HighRisk
		th.HighConfidenceFalse = t.HighConfidenceFalse
	}
	return th
}

func sourceNames(clients []search.Client) []string {
	names := make([]string, 0, len(clients))
	for _, c := range clients {
		names = append(names, c.Name())
	}
	return names
}
