package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"token-tracker/internal/app"
	"token-tracker/internal/config"
	"token-tracker/internal/logger"
)

func main() {
	configPath := flag.String("config", "", "path to config file (defaults apply when omitted)")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logCfg := logger.DefaultConfig()
	logCfg.LogFile = cfg.LogFile
	logCfg.Development = cfg.DebugLogging
	log, err := logger.New(logCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync(log) }()

	log.Info("Starting token tracker")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tracker, err := app.New(cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize tracker", zap.Error(err))
	}

	if err := tracker.Run(ctx); err != nil {
		log.Fatal("Tracker execution error", zap.Error(err))
	}
}
