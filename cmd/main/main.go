package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"power-observer/src/config"
	"power-observer/src/logger"
)

// -----------------------------------------------------------------------------

func main() {

	// Parse command line flags
	configPath := flag.String("config", "config/default.yaml", "path to config file")
	flag.Parse()

	// Load config from YAML file
	cfg, err := config.NewConfig(*configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	appLogger := logger.NewLogger(cfg.LogLevel, cfg.Name)

	// 1. Wire components
	app, err := setup(cfg, appLogger)
	if err != nil {
		appLogger.Critical("Startup failed: %v", err)
		os.Exit(1)
	}
	defer app.Store.Close()
	appLogger.Info("Reading store: %s", describeStore(app.Store))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Listeners
	svc := startServers(app, cfg, appLogger)

	// 3. Retention cleanup for SQL stores
	var wg sync.WaitGroup
	if cleaner, ok := app.Store.(retentionCleaner); ok && cfg.Storage.DataRetentionDays > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runCleanupLoop(ctx, cleaner, cfg.Storage.DataRetentionDays, appLogger.Named("Retention"))
		}()
	}

	<-ctx.Done()
	appLogger.Info("Shutting down...")
	svc.shutdown(appLogger)
	wg.Wait()
}
