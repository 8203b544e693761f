package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"portfolio/api/internal/app"
	"portfolio/api/internal/assets"
	"portfolio/api/internal/authpw"
	"portfolio/api/internal/config"
	"portfolio/api/internal/content"
	"portfolio/api/internal/docstore"
	"portfolio/api/internal/export"
	"portfolio/api/internal/history"
	"portfolio/api/internal/search"
	"portfolio/api/internal/session"
	"portfolio/api/internal/store"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
		log.Fatalf("migrations failed: %v", err)
	}

	dataStore := store.NewPostgresStore(db)

	// Redis carries refresh tokens and fans document changes out across
	// instances; Postgres covers both on its own in single-node setups.
	var redisStore *session.RedisStore
	if strings.TrimSpace(cfg.RedisURL) != "" {
		log.Printf("Using Redis for refresh token storage")
		redisStore, err = session.NewRedisStore(cfg.RedisURL)
		if err != nil {
			log.Fatalf("redis connection failed: %v", err)
		}
		defer redisStore.Close()
	} else {
		log.Printf("Using PostgreSQL for refresh token storage")
	}

	var documents docstore.Store
	if redisStore != nil {
		documents = docstore.NewPostgresWithRedis(db, redisStore.Client())
	} else {
		documents = docstore.NewPostgres(db)
	}
	defer documents.Close()

	contentService := content.New(documents)

	authService := authpw.NewService(dataStore)
	if err := authService.EnsureOwner(ctx, cfg.AdminEmail, cfg.AdminPassword, cfg.AdminName); err != nil {
		log.Fatalf("owner account seed failed: %v", err)
	}

	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
		defer meiliClient.Close()
	}
	searchService := search.NewService(meiliClient, search.NewPgFTS(db))

	if err := os.MkdirAll(cfg.HistoryDir, 0o755); err != nil {
		log.Fatalf("failed to create history dir: %v", err)
	}
	historyService := history.New(cfg.HistoryDir)

	var assetStore app.AssetStore
	if strings.TrimSpace(cfg.MinioEndpoint) != "" {
		assetService, err := assets.New(ctx, assets.Config{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
			PublicURL: cfg.MinioPublicURL,
		})
		if err != nil {
			log.Fatalf("asset storage connection failed: %v", err)
		}
		assetStore = assetService
	} else {
		log.Printf("Asset storage not configured, image uploads disabled")
	}

	deps := app.Deps{
		Content:  contentService,
		AuthPW:   authService,
		Users:    dataStore,
		Revoker:  dataStore,
		Search:   searchService,
		History:  historyService,
		Export:   export.NewService(contentService),
		Assets:   assetStore,
		Pinger:   dataStore,
		Sessions: dataStore,
	}
	if redisStore != nil {
		deps.Sessions = redisStore
	}

	service := app.New(cfg, deps)
	if err := service.Bootstrap(ctx); err != nil {
		log.Printf("WARNING: bootstrap error (will retry on next restart): %v", err)
	}
	defer contentService.Close()

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		// No WriteTimeout: /api/content/events holds a streaming response open.
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Printf("Portfolio API listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
