package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/upperlevel/carcassonne-server/internal/config"
	"github.com/upperlevel/carcassonne-server/internal/coordinator"
	"github.com/upperlevel/carcassonne-server/internal/events"
	"github.com/upperlevel/carcassonne-server/internal/logging"
	"github.com/upperlevel/carcassonne-server/internal/ratelimit"
	"github.com/upperlevel/carcassonne-server/internal/tracing"
	"github.com/upperlevel/carcassonne-server/internal/transport"
)

func main() {
	// Try multiple paths to handle different ways of running the app.
	envPaths := []string{".env", "../../.env"}
	for _, path := range envPaths {
		if err := godotenv.Load(path); err == nil {
			break
		}
	}

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	if err := logging.Initialize(cfg.DevMode); err != nil {
		panic(err)
	}
	ctx := context.Background()
	logging.Info(ctx, "coordinatord: starting", zap.String("bind_addr", cfg.BindAddr), zap.String("go_env", cfg.GoEnv))

	shutdownTracing, err := tracing.Init("carcassonne-coordinator")
	if err != nil {
		logging.Error(ctx, "coordinatord: failed to init tracing", zap.Error(err))
		os.Exit(1)
	}
	defer func() {
		tctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(tctx); err != nil {
			logging.Warn(ctx, "coordinatord: tracing shutdown failed", zap.Error(err))
		}
	}()

	var publisher *events.Publisher
	if cfg.RedisEnabled {
		publisher, err = events.New(cfg.RedisAddr)
		if err != nil {
			logging.Error(ctx, "coordinatord: failed to connect to redis, lifecycle events disabled", zap.Error(err))
			publisher = nil
		} else {
			defer publisher.Close()
		}
	}

	opts := coordinator.Options{
		EnforceNameUniqueness: cfg.EnforceNameUniqueness,
	}
	if publisher != nil {
		opts.Publisher = publisher
	}
	coord := coordinator.New(opts)

	coordCtx, cancelCoord := context.WithCancel(context.Background())
	go coord.Run(coordCtx)

	limiter, err := ratelimit.New(cfg.LoginRateLimit)
	if err != nil {
		logging.Error(ctx, "coordinatord: failed to build rate limiter", zap.Error(err))
		os.Exit(1)
	}

	router := transport.NewRouter(coord, limiter, cfg.AllowedOrigins)

	srv := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: router.Engine(),
	}

	go func() {
		logging.Info(ctx, "coordinatord: listening", zap.String("addr", cfg.BindAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Error(ctx, "coordinatord: server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logging.Info(ctx, "coordinatord: shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error(ctx, "coordinatord: forced shutdown", zap.Error(err))
	}

	cancelCoord()
	logging.Info(ctx, "coordinatord: exited")
}
