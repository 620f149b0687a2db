// Package main provides the API server entry point for the approval sentinel.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/approval-sentinel/internal/api"
	"github.com/approval-sentinel/internal/chain"
	"github.com/approval-sentinel/internal/config"
	"github.com/approval-sentinel/internal/logging"
	"github.com/approval-sentinel/internal/risk"
	"github.com/approval-sentinel/internal/service"
	"github.com/approval-sentinel/internal/storage"
	"github.com/approval-sentinel/internal/types"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logging.New(logging.LevelInfo, logging.FormatText).Fatalf("Failed to load configuration: %v", err)
	}

	logger := logging.New(logging.ParseLevel(cfg.Logging.Level), logging.ParseFormat(cfg.Logging.Format))
	logger.WithFields(map[string]any{
		"level":  cfg.Logging.Level,
		"format": cfg.Logging.Format,
	}).Info("approval sentinel API server starting")

	postgres, err := storage.NewPostgresDB(&cfg.Database.Postgres)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Postgres")
	}
	defer postgres.Close()

	redis, err := storage.NewRedisCache(&cfg.Database.Redis)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Redis")
	}
	defer redis.Close() // nolint:errcheck // cleanup in defer

	logger.Info("database connections established")

	// RPC clients back the wallet registration height lookup
	urls := make(map[types.Chain]string)
	for name, cc := range cfg.Chains.Chains {
		if cc.RPCURL != "" {
			urls[name] = cc.RPCURL
		}
	}
	registry := chain.NewClientRegistry(urls, logger)
	defer registry.Close()
	source := chain.NewEthLogSource(registry)

	walletRepo := storage.NewWalletRepository(postgres)
	eventRepo := storage.NewEventRepository(postgres)
	allowlistRepo := storage.NewAllowlistRepository(postgres)
	userRepo := storage.NewUserRepository(postgres)
	trustCache := storage.NewTrustCache(redis, 10*time.Minute)

	valuableTokens := make(map[types.Chain]map[string]bool)
	for name := range cfg.Chains.Chains {
		valuableTokens[name] = cfg.Chains.ValuableTokenSet(name)
	}
	engine := risk.NewEngine(valuableTokens)

	walletService := service.NewWalletService(walletRepo, source, cfg.Chains, logger)
	allowlistService := service.NewAllowlistService(allowlistRepo, trustCache, logger)
	approvalService := service.NewApprovalService(eventRepo, walletRepo, allowlistService, engine, logger)

	server := api.NewServer(&api.ServerConfig{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    30 * time.Second,
		IdleTimeout:     60 * time.Second,
		ShutdownTimeout: 30 * time.Second,
	}, walletService, approvalService, allowlistService, userRepo, logger)

	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("API server failed")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.WithField("signal", sig.String()).Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("graceful shutdown failed")
	}
	logger.Info("server stopped")
}
