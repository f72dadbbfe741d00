package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/24981a0558-joel/manna-contribution/internal/access"
	"github.com/24981a0558-joel/manna-contribution/internal/backend"
	"github.com/24981a0558-joel/manna-contribution/internal/catalog"
	"github.com/24981a0558-joel/manna-contribution/internal/http/handlers"
	"github.com/24981a0558-joel/manna-contribution/internal/http/httpapi"
	"github.com/24981a0558-joel/manna-contribution/internal/infra"
	"github.com/24981a0558-joel/manna-contribution/internal/infra/geoip"
	"github.com/24981a0558-joel/manna-contribution/internal/infra/google"
	"github.com/24981a0558-joel/manna-contribution/internal/ledger"
	"github.com/24981a0558-joel/manna-contribution/internal/middleware"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	logger := infra.NewLogger(cfg.AppEnv, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := backend.Open(ctx, cfg, logger, true)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open store")
	}
	defer store.Close()

	policy, err := access.NewPolicy(cfg.DefaultRole, cfg.BootstrapAdmins)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid access policy")
	}

	svc := ledger.NewService(store.Stores, catalog.Default(), logger, ledger.Options{
		ImportConcurrency: cfg.ImportConcurrency,
		IdleTTL:           cfg.BookIdleTTL,
		AuditTimeout:      cfg.AuditTimeout,
		AuditListLimit:    cfg.AuditListLimit,
		WriteTimeout:      cfg.WriteTimeout,
	})
	defer svc.Close()

	geo, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip disabled")
	}
	var country middleware.CountryLookup
	if geo != nil {
		defer geo.Close()
		country = geo.CountryCode
	}

	app := handlers.NewApp(
		logger,
		svc,
		access.NewDirectory(store.Users, logger),
		access.NewResolver(store.Users, policy, logger),
		google.NewVerifier(cfg.GoogleIssuer, cfg.GoogleClientID),
	)
	app.JWTSecret = cfg.JWTSecret
	app.SessionTTL = cfg.SessionTTL
	app.Currency = cfg.Currency
	app.Ping = store.Ping
	app.StoreKind = store.Kind

	router := httpapi.NewRouter(app, httpapi.Options{
		Locales:         middleware.NewLocales(cfg.DefaultLocale),
		Country:         country,
		CORSOrigins:     cfg.CORSOrigins,
		RateLimitPerMin: cfg.RateLimitPerMin,
	})

	server := infra.NewHTTPServer(cfg, router)
	logger.Info().Str("addr", server.Addr()).Str("store", cfg.Store).Msg("API listening")
	if err := server.Run(ctx, 15*time.Second); err != nil {
		logger.Error().Err(err).Msg("http server failed")
	}
	logger.Info().Msg("server stopped")
}
