// SPDX-License-Identifier: MIT

// Command daemon runs the livecap control plane: it supervises caption
// worker processes, fans their events out to websocket subscribers and
// serves the HTTP API.
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
	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/livecap/internal/api"
	"github.com/ManuGH/livecap/internal/cache"
	"github.com/ManuGH/livecap/internal/config"
	"github.com/ManuGH/livecap/internal/hub"
	"github.com/ManuGH/livecap/internal/jobs"
	"github.com/ManuGH/livecap/internal/log"
	"github.com/ManuGH/livecap/internal/models"
	"github.com/ManuGH/livecap/internal/retention"
	"github.com/ManuGH/livecap/internal/session"
	"github.com/ManuGH/livecap/internal/storage"
	"github.com/ManuGH/livecap/internal/telemetry"
)

var (
	version   = "v0.1.0"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("livecap %s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	log.Configure(log.Config{
		Level:   config.ParseString("LIVECAP_LOG_LEVEL", "info"),
		Service: "livecap",
		Version: version,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := run(ctx)
	switch {
	case err == nil:
		os.Exit(0)
	case errors.Is(err, config.ErrInvalid):
		logger := log.WithComponent("daemon")
		logger.Error().Err(err).Msg("configuration error")
		os.Exit(2)
	default:
		logger := log.WithComponent("daemon")
		logger.Error().Err(err).Msg("daemon failed")
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := log.WithComponent("daemon")

	// #nosec G301 -- the output tree is served over the read-only mount.
	if err := os.MkdirAll(cfg.OutRoot, 0o755); err != nil {
		return fmt.Errorf("create output root: %w", err)
	}

	provider, err := telemetry.NewProvider(ctx, telemetry.Config{
		Endpoint:       cfg.OTLPEndpoint,
		ServiceName:    "livecap",
		ServiceVersion: version,
	})
	if err != nil {
		return fmt.Errorf("telemetry init: %w", err)
	}
	defer func() {
		if err := provider.Shutdown(context.Background()); err != nil {
			logger.Warn().Err(err).Msg("telemetry shutdown failed")
		}
	}()

	store := newCache(cfg, logger)

	registry, err := models.New(cfg.ModelsDir, store)
	if err != nil {
		return fmt.Errorf("model registry: %w", err)
	}
	defer registry.Close()
	if err := registry.Watch(); err != nil {
		logger.Warn().Err(err).Msg("model watcher unavailable, registry is scan-on-start only")
	}

	var archive *storage.Archive
	if cfg.ArchivePath != "" {
		archive, err = storage.OpenArchive(cfg.ArchivePath)
		if err != nil {
			return fmt.Errorf("open commit archive: %w", err)
		}
		defer func() { _ = archive.Close() }()
	}

	h := hub.New()
	defer h.Close()

	sup := session.New(session.Options{
		OutRoot:         cfg.OutRoot,
		WorkerBin:       cfg.WorkerBin,
		MaxCUDASessions: cfg.MaxCUDASessions,
		Archive:         archive,
	}, h)
	sup.Start(ctx)
	defer sup.Shutdown(context.Background())

	jm := jobs.NewManager(h, cfg.ModelsDir, nil)
	defer jm.Close()

	server := api.New(api.Options{
		Supervisor: sup,
		Hub:        h,
		Registry:   registry,
		Jobs:       jm,
		Cache:      store,
		OutRoot:    cfg.OutRoot,
		AdminToken: cfg.AdminToken,
		Version:    version,
	})

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		retention.Run(ctx, cfg.OutRoot, retention.Policy{
			TTL:      cfg.RetentionTTL,
			MaxBytes: cfg.RetentionMaxBytes,
		}, cfg.RetentionInterval, sup.ActiveRunDirs())
		return nil
	})

	g.Go(func() error {
		logger.Info().
			Int("port", cfg.Port).
			Str("out_root", cfg.OutRoot).
			Str("models_dir", cfg.ModelsDir).
			Msg("listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// newCache picks Redis when configured and reachable, otherwise the
// in-memory cache. A dead Redis must never block startup.
func newCache(cfg config.Config, logger zerolog.Logger) cache.Cache {
	if cfg.RedisAddr == "" {
		return cache.NewMemory(5 * time.Minute)
	}
	rc, err := cache.NewRedis(cache.RedisConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("redis unavailable, falling back to in-memory cache")
		return cache.NewMemory(5 * time.Minute)
	}
	return rc
}
