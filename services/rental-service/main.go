package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ashendes/rental-inventory/internal/api"
	"github.com/ashendes/rental-inventory/internal/auth"
	"github.com/ashendes/rental-inventory/internal/config"
	"github.com/ashendes/rental-inventory/internal/repository"
	"github.com/ashendes/rental-inventory/internal/repository/gormstore"
	"github.com/ashendes/rental-inventory/internal/repository/redisstore"
	"github.com/ashendes/rental-inventory/internal/service"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

const serviceName = "rental-service"

func init() {
	log.SetFormatter(&log.JSONFormatter{})
	log.SetLevel(log.InfoLevel)
}

func main() {
	configPath := flag.String("config", "", "path to a config file (yaml, json or toml)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.WithError(err).Fatal("Invalid configuration")
	}
	if level, err := log.ParseLevel(cfg.Log.Level); err == nil {
		log.SetLevel(level)
	}
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg.Storage)
	if err != nil {
		log.WithError(err).Fatal("Failed to open storage")
	}
	defer store.Close()

	items := service.NewItemService(store.Items())
	packages := service.NewPackageService(store.Packages(), store.Items())
	if err := items.PrimeMetrics(ctx); err != nil {
		log.WithError(err).Warn("Failed to prime inventory metrics")
	}
	if err := packages.PrimeMetrics(ctx); err != nil {
		log.WithError(err).Warn("Failed to prime package metrics")
	}

	tokens := auth.NewTokens([]byte(cfg.Auth.Key), cfg.Auth.Issuer, cfg.Auth.Audience, cfg.Auth.TokenTTL)
	server := api.NewServer(store, items, packages, api.Options{
		ServiceName: serviceName,
		Environment: cfg.Environment,
		Roles:       cfg.Auth.Roles,
		CORSOrigins: cfg.Server.CORSOrigins,
	})

	httpServer := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: server.Handler(tokens),
	}

	go func() {
		log.WithFields(log.Fields{
			"port":    cfg.Server.Port,
			"storage": store.Driver(),
			"env":     cfg.Environment,
		}).Info("Rental Service starting")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("Failed to start server")
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Graceful shutdown failed")
	}
}

func openStore(ctx context.Context, cfg config.StorageConfig) (repository.Store, error) {
	if cfg.Driver == redisstore.Driver {
		return redisstore.Open(ctx, redisstore.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	return gormstore.Open(gormstore.Options{
		Driver:          cfg.Driver,
		DSN:             cfg.DSN,
		ConnectAttempts: cfg.ConnectAttempts,
		RetryDelay:      cfg.RetryDelay,
		MaxOpenConns:    cfg.MaxOpenConns,
		LogSQL:          cfg.LogSQL,
	})
}
