package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Guilhem-Bonnet/anime-catalog/internal/adapters/httpapi"
	"github.com/Guilhem-Bonnet/anime-catalog/internal/adapters/memorybus"
	"github.com/Guilhem-Bonnet/anime-catalog/internal/adapters/sqlite"
	"github.com/Guilhem-Bonnet/anime-catalog/internal/app"
	"github.com/Guilhem-Bonnet/anime-catalog/internal/buildinfo"
	"github.com/Guilhem-Bonnet/anime-catalog/internal/config"
	"github.com/Guilhem-Bonnet/anime-catalog/internal/ports"
)

func main() {
	configPath := flag.String("config", os.Getenv("CATALOG_CONFIG"), "Fichier de configuration YAML (optionnel)")
	addr := flag.String("addr", "", "Adresse d'écoute (ex: 127.0.0.1:8080)")
	dbPath := flag.String("db", "", "Chemin SQLite (ex: catalog.db)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	// Les flags explicites priment sur la config.
	if *addr != "" {
		cfg.Addr = *addr
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger := zerolog.New(os.Stdout).Level(level).With().Timestamp().Str("app", "catalog-server").Logger()
	log.Logger = logger

	logger.Info().Interface("build", buildinfo.Current()).Str("db", cfg.DBPath).Msg("starting")

	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Sans stockage la session reste en mémoire: l'app démarre quand même.
	var (
		store ports.KeyValueStore
		ping  func(ctx context.Context) error
	)
	db, openErr := sqlite.Open(shutdownCtx, cfg.DBPath)
	if openErr != nil {
		logger.Warn().Err(openErr).Msg("storage unavailable, sessions will not persist")
		ping = func(context.Context) error { return openErr }
	} else {
		defer func() { _ = db.Close() }()
		store = sqlite.NewKVStore(db.SQL)
		ping = db.Ping
	}

	bus := memorybus.New()
	defer bus.Close()

	sessions := app.NewSessionService(logger.With().Str("component", "session").Logger(), store)

	source := app.NewAniListService(cfg.HTTPTimeout).WithEndpoint(cfg.AniListEndpoint)
	limiter := app.NewFetchLimiter(cfg.MaxConcurrentFetches)
	client := app.NewCatalogClient(logger.With().Str("component", "catalog-client").Logger(), source, app.CatalogClientOptions{
		Limiter:  limiter,
		FreshFor: cfg.CacheFreshFor,
	})

	// Seul le plafond de fetchs est rechargé à chaud; le reste demande un redémarrage.
	if err := config.Watch(*configPath, func(updated config.Config) {
		if updated.MaxConcurrentFetches != limiter.Limit() {
			limiter.SetLimit(updated.MaxConcurrentFetches)
			logger.Info().Int("max_concurrent_fetches", updated.MaxConcurrentFetches).Msg("fetch limit updated")
		}
	}); err != nil {
		logger.Warn().Err(err).Msg("config watch disabled")
	}
	catalog := app.NewPaginationController(shutdownCtx, logger.With().Str("component", "pagination").Logger(), client, bus, app.PaginationOptions{
		PerPage:         cfg.PerPage,
		MaxVisiblePages: cfg.MaxVisiblePages,
	})
	defer catalog.Close()

	if cfg.PrefetchNext {
		prefetcher := app.NewNextPagePrefetcher(logger.With().Str("component", "prefetch").Logger(), bus, client)
		go prefetcher.Run(shutdownCtx)
	}

	srv := httpapi.NewServer(logger, sessions, catalog, bus, ping)
	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.Addr).Str("anilist", source.Endpoint()).Msg("listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server crashed")
			stop()
		}
	}()

	<-shutdownCtx.Done()
	logger.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	// Ferme d'abord les flux SSE pour que Shutdown n'attende pas les abonnés.
	bus.Close()
	_ = httpServer.Shutdown(ctx)
	logger.Info().Msg("bye")
}
