package main

import (
	"context"
	"time"

	"power-observer/src/cache"
	"power-observer/src/config"
	"power-observer/src/grpc_control"
	"power-observer/src/helpers"
	"power-observer/src/logger"
	"power-observer/src/server"
)

// services are the long-running listeners started by startServers.
type services struct {
	HTTP     *server.HTTPServer
	GRPC     *grpc_control.Server
	Listener *cache.InvalidationListener
}

// -----------------------------------------------------------------------------

// startServers orchestrates the startup of all server components
func startServers(app *application, cfg *config.Config, appLogger *logger.Logger) *services {
	svc := &services{}

	// 1. HTTP + websocket
	svc.HTTP = server.NewHTTPServer(cfg.MConfig, server.Dependencies{
		Store:      app.Store,
		Source:     app.Fetcher,
		Cache:      app.Cache,
		Assembler:  app.Assembler,
		Classifier: app.Classifier,
		Location:   app.Location,
	}, appLogger.Named("HTTPServer"))
	go func() {
		if err := svc.HTTP.Start(); err != nil {
			appLogger.Critical("HTTP server failed: %v", err)
		}
	}()

	// 2. gRPC cache control
	if cfg.GrpcPort != 0 {
		grpcLogger := appLogger.Named("ControlService")
		svc.GRPC = grpc_control.NewServer(cfg.GrpcHost, cfg.GrpcPort, grpc_control.NewControlService(app.Cache, grpcLogger), grpcLogger)
		go func() {
			if err := svc.GRPC.Start(); err != nil {
				appLogger.Critical("gRPC server failed: %v", err)
			}
		}()
	}

	// 3. Cache invalidation from the store's change feed
	if cfg.Cache.Invalidation.Enabled {
		svc.Listener = cache.NewInvalidationListener(cfg.Cache.Invalidation, app.Cache, appLogger.Named("Invalidation"))
		svc.Listener.OnInvalidate = svc.HTTP.NotifyInvalidated
		if err := svc.Listener.Start(); err != nil {
			appLogger.Error("Cache invalidation disabled: %v", err)
			svc.Listener = nil
		}
	}

	return svc
}

// -----------------------------------------------------------------------------

// runCleanupLoop prunes readings older than the retention window once a day.
func runCleanupLoop(ctx context.Context, cleaner retentionCleaner, retentionDays int, appLogger *logger.Logger) {
	handler := helpers.NewErrorHandler(appLogger)
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		removed, err := cleaner.CleanupOldData(ctx, retentionDays)
		if !handler.Handle(err, "retention cleanup") && removed > 0 {
			appLogger.Info("Retention cleanup removed %d day rows older than %d days", removed, retentionDays)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// -----------------------------------------------------------------------------

// shutdown stops listeners in reverse start order.
func (svc *services) shutdown(appLogger *logger.Logger) {
	if svc.Listener != nil {
		svc.Listener.Stop()
	}
	if svc.GRPC != nil {
		svc.GRPC.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := svc.HTTP.Stop(ctx); err != nil {
		appLogger.Error("HTTP shutdown: %v", err)
	}
}
