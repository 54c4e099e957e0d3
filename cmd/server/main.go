package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ecommerce-platform/config"
	"ecommerce-platform/internal/app"
	"ecommerce-platform/internal/util"

	"go.uber.org/zap"
)

func main() {
	os.Exit(run())
}

// run returns the process exit code. Any failure is non-zero so the
// supervisor restarts the service.
func run() int {
	cfg, err := config.Load()
	if err != nil {
		log.Printf("Failed to load config: %v", err)
		return 1
	}

	serviceName := cfg.Server.Service + "-service"
	if err := util.InitLogger(cfg.Server.Env, serviceName); err != nil {
		log.Printf("Failed to initialize logger: %v", err)
		return 1
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting service",
		zap.String("env", cfg.Server.Env),
		zap.String("storage", cfg.Database.Driver),
		zap.String("publish_failure_policy", cfg.Outbox.Policy),
		zap.Strings("kafka_brokers", cfg.Kafka.Brokers))

	if cfg.Observ.TracingEnabled {
		tp, err := util.InitTracer(serviceName, cfg.Observ.JaegerEndpoint)
		if err != nil {
			logger.Error("Failed to initialize tracer", zap.Error(err))
			return 1
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tp.Shutdown(ctx); err != nil {
				logger.Error("Error shutting down tracer", zap.Error(err))
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		logger.Error("Failed to build service", zap.Error(err))
		return 1
	}

	if err := a.Run(ctx); err != nil {
		logger.Error("Service stopped with error", zap.Error(err))
		return 1
	}
	logger.Info("Service exited")
	return 0
}
