// Package main provides the scan worker entry point for the approval sentinel.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/approval-sentinel/internal/chain"
	"github.com/approval-sentinel/internal/classifier"
	"github.com/approval-sentinel/internal/config"
	"github.com/approval-sentinel/internal/logging"
	"github.com/approval-sentinel/internal/notify"
	"github.com/approval-sentinel/internal/risk"
	"github.com/approval-sentinel/internal/scanner"
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
	logger.WithField("pollInterval", cfg.Scanner.PollInterval.String()).Info("approval sentinel scanner starting")

	ready, missing := cfg.Chains.ScannableChains()
	for _, name := range missing {
		logger.WithField("chain", name).Warn("chain enabled but no RPC URL configured, it will not be scanned")
	}
	if len(ready) == 0 {
		logger.Fatal("No chain has an RPC URL configured")
	}

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

	urls := make(map[types.Chain]string)
	for _, name := range ready {
		urls[name] = cfg.Chains.Chains[name].RPCURL
	}
	registry := chain.NewClientRegistry(urls, logger)
	defer registry.Close()
	source := chain.NewEthLogSource(registry)

	walletRepo := storage.NewWalletRepository(postgres)
	eventRepo := storage.NewEventRepository(postgres)
	allowlistRepo := storage.NewAllowlistRepository(postgres)
	trustCache := storage.NewTrustCache(redis, 10*time.Minute)

	valuableTokens := make(map[types.Chain]map[string]bool)
	for name := range cfg.Chains.Chains {
		valuableTokens[name] = cfg.Chains.ValuableTokenSet(name)
	}
	engine := risk.NewEngine(valuableTokens)

	allowlistService := service.NewAllowlistService(allowlistRepo, trustCache, logger)
	approvalService := service.NewApprovalService(eventRepo, walletRepo, allowlistService, engine, logger)

	notifier := notify.NewMultiNotifier(logger,
		notify.NewMailer(cfg.Mail, logger),
		notify.NewTelegramNotifier(cfg.Telegram, logger),
	)

	cls := classifier.New(logger)
	scan := scanner.NewScanner(cfg.Chains, cfg.Scanner, source, cls, walletRepo, approvalService, notifier, logger)

	worker, err := scanner.NewWorker(scan, cfg.Scanner.PollInterval, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create scan worker")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := worker.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Failed to start scan worker")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.WithField("signal", sig.String()).Info("shutdown signal received")

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()
	if err := worker.Stop(stopCtx); err != nil {
		logger.WithError(err).Error("scan worker did not stop cleanly")
	}
	logger.Info("scanner stopped")
}
