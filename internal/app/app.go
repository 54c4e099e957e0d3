// Package app assembles one service process from configuration: storage,
// cache, broker client, services, consumer worker, outbox relay and HTTP API.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"ecommerce-platform/config"
	"ecommerce-platform/internal/api"
	"ecommerce-platform/internal/broker"
	"ecommerce-platform/internal/redisclient"
	"ecommerce-platform/internal/service"
	"ecommerce-platform/internal/store"
	"ecommerce-platform/internal/store/memory"
	"ecommerce-platform/internal/util"
	"ecommerce-platform/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Backend is the storage a process needs; both the postgres and memory stores satisfy it
type Backend interface {
	service.OrderStore
	service.ProductStore
	service.UserStore
	service.OutboxStore
	Ping(ctx context.Context) error
}

type runner interface {
	Start(ctx context.Context) error
}

// App is one running service
type App struct {
	cfg      *config.Config
	spec     ServiceSpec
	logger   *zap.Logger
	server   *http.Server
	runners  map[string]runner
	shutdown *ShutdownManager
}

// New builds the process described by cfg. Resources opened before a failure
// are released before returning.
func New(ctx context.Context, cfg *config.Config) (_ *App, err error) {
	spec, err := Lookup(cfg.Server.Service)
	if err != nil {
		return nil, err
	}

	logger := util.GetLogger()
	a := &App{
		cfg:      cfg,
		spec:     spec,
		logger:   logger,
		runners:  make(map[string]runner),
		shutdown: NewShutdownManager(cfg.Server.ShutdownTimeout, logger),
	}
	defer func() {
		if err != nil {
			a.shutdown.Shutdown()
		}
	}()

	backend, err := a.openBackend(ctx)
	if err != nil {
		return nil, err
	}

	checks := map[string]api.ReadinessCheck{"database": backend.Ping}

	var rc *redisclient.Client
	if cfg.Redis.Enabled {
		rc, err = redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		a.shutdown.Add("redis", closer(rc))
		checks["redis"] = rc.Ping
		logger.Info("Redis connected", zap.String("addr", cfg.Redis.Addr))
	}

	client := broker.NewClient(broker.ClientConfig{
		Brokers:          cfg.Kafka.Brokers,
		ClientID:         cfg.Kafka.ClientID,
		AutoCreateTopics: cfg.Kafka.AutoCreateTopic,
	})
	a.shutdown.Add("kafka client", closer(client))
	publisher := broker.NewEventPublisher(client)

	var outbox service.OutboxStore
	if cfg.Outbox.Policy == config.PolicyOutbox {
		outbox = backend
		var locker worker.Locker
		if rc != nil {
			locker = rc
		}
		a.runners["outbox relay"] = worker.NewOutboxRelay(worker.RelayConfig{
			Interval:    cfg.Outbox.Interval,
			BatchSize:   cfg.Outbox.BatchSize,
			MaxAttempts: cfg.Outbox.MaxAttempts,
		}, backend, publisher, locker)
	}
	emitter := service.NewEmitter(publisher, outbox)

	group := cfg.Kafka.ConsumerGroup
	if group == "" {
		group = spec.GroupID()
	}
	dispatch := broker.DispatcherConfig{
		GroupID:        group,
		Topics:         spec.Subscriptions,
		OwnTopic:       spec.OwnTopic,
		HandlerTimeout: cfg.Kafka.HandlerTimeout,
	}
	var dlq broker.DeadLetterSink
	if cfg.Kafka.DeadLetterTopic != "" {
		dlq = broker.NewDeadLetterPublisher(client, cfg.Kafka.DeadLetterTopic, group)
	}
	reader := client.NewReader(group, spec.Subscriptions)

	opts := api.Options{Checks: checks, Broker: client}
	var w *worker.Worker
	switch spec.Name {
	case config.ServiceOrder:
		var idem service.IdempotencyStore
		if rc != nil {
			idem = rc
		}
		opts.Orders = service.NewOrderService(backend, emitter, idem)
		w, err = worker.NewOrderWorker(dispatch, reader, opts.Orders, dlq)
	case config.ServiceProduct:
		var cache service.InventoryCache
		if rc != nil {
			cache = rc
		}
		opts.Products = service.NewProductService(backend, emitter, cache)
		reconciler := service.NewInventoryReconciler(backend, emitter, cache)
		w, err = worker.NewProductWorker(dispatch, reader, reconciler, dlq)
	case config.ServiceUser:
		opts.Users = service.NewUserService(backend, emitter)
		w, err = worker.NewUserWorker(dispatch, reader, opts.Users, dlq)
	}
	if err != nil {
		_ = reader.Close()
		return nil, err
	}
	a.runners["consumer"] = w
	a.shutdown.Add("consumer", func(context.Context) error { return w.Stop() })

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	api.NewHandler(opts).SetupRoutes(router)

	a.server = &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	return a, nil
}

func (a *App) openBackend(ctx context.Context) (Backend, error) {
	if a.cfg.Database.Driver == config.DriverMemory {
		a.logger.Warn("Using in-memory storage; data is lost on restart")
		return memory.New(), nil
	}

	db, err := store.NewStore(a.cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	a.shutdown.Add("database", closer(db))

	if a.cfg.Database.Migrate {
		if err := db.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
	}
	a.logger.Info("Database connected", zap.String("url", a.cfg.MaskedDatabaseURL()))
	return db, nil
}

// Run serves HTTP and runs the background workers until ctx is cancelled or
// one of them fails. It then stops the HTTP server, waits for the workers to
// finish their current message, and only then releases the broker, cache and
// storage.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	runners, rctx := errgroup.WithContext(ctx)
	for name, r := range a.runners {
		name, r := name, r
		runners.Go(func() error {
			if err := r.Start(rctx); err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			return nil
		})
	}

	served := make(chan error, 1)
	go func() {
		a.logger.Info("Starting HTTP server",
			zap.String("service", a.spec.Name),
			zap.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			served <- fmt.Errorf("http server: %w", err)
			return
		}
		served <- nil
	}()

	var err error
	select {
	case <-rctx.Done():
	case err = <-served:
	}
	cancel()
	a.logger.Info("Shutting down", zap.String("service", a.spec.Name))

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	if serr := a.server.Shutdown(shutdownCtx); serr != nil {
		a.logger.Error("HTTP server shutdown failed", zap.Error(serr))
	}
	cancelShutdown()

	err = errors.Join(err, runners.Wait())
	a.shutdown.Shutdown()
	return err
}

// Shutdown releases every resource. Run calls it on exit.
func (a *App) Shutdown() {
	a.shutdown.Shutdown()
}
