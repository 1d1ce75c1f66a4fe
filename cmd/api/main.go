package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"pipeline/internal/app"
	"pipeline/internal/blob"
	"pipeline/internal/config"
	"pipeline/internal/logging"
	"pipeline/internal/metrics"
	"pipeline/internal/search"
	"pipeline/internal/session"
	"pipeline/internal/store"
)

func main() {
	cfg := config.Load()
	logging.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx := context.Background()

	kv, err := store.Open(ctx, store.Options{
		Backend:       cfg.Store,
		RedisURL:      cfg.RedisURL,
		DatabaseURL:   cfg.DatabaseURL,
		MigrationsDir: cfg.MigrationsDir,
		GitDir:        cfg.GitDir,
	})
	if err != nil {
		log.WithError(err).WithField("backend", cfg.Store).Fatal("store connection failed")
	}
	defer kv.Close()

	deps := app.Dependencies{Metrics: metrics.New()}

	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient := search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
		defer meiliClient.Close()
		deps.Index = meiliClient
	}

	// Drafts share the Redis server when the collections live there.
	if cfg.Store == "redis" {
		drafts, err := session.NewRedis(cfg.RedisURL)
		if err != nil {
			log.WithError(err).Fatal("draft store connection failed")
		}
		defer drafts.Close()
		deps.Drafts = drafts
	}

	blobs, err := blob.NewMinio(ctx, blob.Options{
		Endpoint:  cfg.MinioEndpoint,
		AccessKey: cfg.MinioAccessKey,
		SecretKey: cfg.MinioSecretKey,
		Bucket:    cfg.MinioBucket,
		UseSSL:    cfg.MinioUseSSL,
	})
	switch {
	case errors.Is(err, blob.ErrDisabled):
		log.Info("attachment uploads disabled")
	case err != nil:
		log.WithError(err).Warn("attachment storage unavailable, uploads disabled")
	default:
		deps.Blobs = blobs
	}

	service := app.New(cfg, kv, deps)
	if err := service.Bootstrap(ctx); err != nil {
		log.WithError(err).Fatal("bootstrap failed")
	}

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.WithFields(log.Fields{"addr": cfg.Addr, "store": cfg.Store}).Info("pipeline API listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server failed")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("shutdown error")
	}
}
