package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"studio/internal/domain"
	"studio/internal/engine"
	"studio/internal/http/handlers"
	httpapi "studio/internal/http/httpapi"
	"studio/internal/infra"
	"studio/internal/infra/credentials"
	"studio/internal/infra/geoip"
	"studio/internal/middleware"
)

func main() {
	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.App.Env, cfg.App.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Provider keys may live in Postgres; the database is optional.
	var keys credentials.Lookup
	pool, err := infra.NewDBPool(ctx, cfg.Database)
	switch {
	case errors.Is(err, infra.ErrNoDatabase):
	case err != nil:
		logger.Warn().Err(err).Msg("credentials database unavailable, using configured keys only")
	default:
		defer pool.Close()
		keys = credentials.NewStore(infra.NewSQLRunner(pool, logger))
	}

	eng, err := engine.New(ctx, cfg, keys, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build generation engine")
	}
	defer eng.Close()

	resolver, err := geoip.NewResolver(cfg.GeoIP.DBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip disabled")
	}
	defer resolver.Close()
	var lookup middleware.CountryLookup
	if resolver != nil {
		lookup = resolver.CountryCode
	}

	app := handlers.NewApp(ctx, eng.Sequencer, eng.Breakers, handlers.NewTracker(cfg.HTTP.ResultTTL), logger)
	app.Assets = eng.Assets

	staticDir := ""
	if cfg.Storage.Driver == infra.StorageFilesystem {
		staticDir = eng.StaticDir
	}
	router := httpapi.NewRouter(app, httpapi.Options{
		Logger:          logger,
		CORSOrigins:     cfg.CORS.Origins(),
		RateLimitPerMin: cfg.HTTP.RateLimitPerMin,
		DefaultLanguage: domain.ParseLanguage(cfg.GeoIP.DefaultLanguage),
		CountryLookup:   lookup,
		StaticDir:       staticDir,

		TrustProxyHeaders: cfg.HTTP.TrustProxyHeaders,
	})

	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Str("addr", server.Addr()).Str("env", cfg.App.Env).Msg("API listening")
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	if err := server.Shutdown(context.Background()); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
