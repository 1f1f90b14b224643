package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/teeshirtminute/tm-autoreply/internal/automation"
	"github.com/teeshirtminute/tm-autoreply/internal/bridge"
	"github.com/teeshirtminute/tm-autoreply/internal/config"
	"github.com/teeshirtminute/tm-autoreply/internal/handler"
	infraredis "github.com/teeshirtminute/tm-autoreply/internal/infra/redis"
	"github.com/teeshirtminute/tm-autoreply/internal/observability"
	"github.com/teeshirtminute/tm-autoreply/internal/provider"
	"github.com/teeshirtminute/tm-autoreply/internal/queue"
	"github.com/teeshirtminute/tm-autoreply/internal/repository"
	"github.com/teeshirtminute/tm-autoreply/internal/service"
	"github.com/teeshirtminute/tm-autoreply/internal/storeapi"
	"github.com/teeshirtminute/tm-autoreply/internal/tracker"
	"github.com/teeshirtminute/tm-autoreply/internal/transport"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP ingress and the dispatch workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			rt, err := newRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()

			return serve(ctx, rt)
		},
	}
}

func serve(ctx context.Context, rt *runtime) error {
	cfg, logger := rt.cfg, rt.logger
	loc := cfg.Location()
	metrics := observability.NewMetrics()

	sqlDB, err := rt.db.DB()
	if err != nil {
		return fmt.Errorf("underlying db init failed: %w", err)
	}

	settingsRepo := rt.settingsRepo()
	historyRepo := repository.NewGormHistoryRepo(rt.db)

	var counter repository.CounterStore = repository.NewGormCounterRepo(rt.db, loc)
	var rdb *goredis.Client
	if cfg.RedisURL != "" {
		rdb, err = infraredis.NewRedis(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("redis initialization failed: %w", err)
		}
		defer rdb.Close()

		counter, err = infraredis.NewRedisCounterStore(rdb, loc)
		if err != nil {
			return err
		}
	}

	publisher, consumer, closeQueue, err := newQueue(cfg, logger)
	if err != nil {
		return err
	}
	defer closeQueue.Close()

	bridgeClient, err := bridge.NewClient(cfg.DeviceBridgeURL, cfg.DeviceBridgeToken, logger)
	if err != nil {
		return fmt.Errorf("device bridge initialization failed: %w", err)
	}

	store := storeapi.NewClient(logger)
	store.SetMetrics(metrics)

	pending := automation.NewPendingSignal(automation.DefaultStaleAfter)
	driver := automation.NewDriver(bridgeClient, pending, automation.Options{TargetPackage: cfg.TargetPackage}, logger)
	driver.SetMetrics(metrics)

	dispatcher, err := service.NewDispatcher(service.DispatcherDeps{
		Settings: settingsRepo,
		History:  historyRepo,
		Counter:  counter,
		Store:    store,
		Primary:  provider.NewWhatsAppChannel(bridgeClient, cfg.TargetPackage),
		Fallback: provider.NewSMSChannel(bridgeClient),
		Signal:   pending,
		Notifier: bridgeClient,
	}, logger)
	if err != nil {
		return err
	}
	dispatcher.SetMetrics(metrics)

	monitor, err := service.NewCallMonitor(settingsRepo, tracker.New(cfg.RingCeiling), publisher, logger)
	if err != nil {
		return err
	}
	monitor.SetMetrics(metrics)
	if _, err := monitor.Boot(ctx); err != nil {
		return err
	}

	worker, err := service.NewWorkerService(consumer, dispatcher, cfg.WorkerConcurrency, logger)
	if err != nil {
		return err
	}
	worker.SetMetrics(metrics)
	worker.SetMaxAge(cfg.MissedCallMaxAge)

	app := fiber.New(fiber.Config{
		ErrorHandler:          transport.ErrorHandler(logger),
		DisableStartupMessage: true,
	})
	app.Use(requestid.New())
	app.Use(metrics.HTTPMiddleware())

	handler.RegisterHealthRoutes(app, handler.HealthDeps{
		DB:      sqlDB,
		Redis:   rdb,
		Bridge:  bridgeClient,
		Metrics: metrics,
	})
	if err := handler.RegisterCallRoutes(app, monitor, driver); err != nil {
		return err
	}
	if err := handler.RegisterSettingsRoutes(app, settingsRepo, store); err != nil {
		return err
	}
	if err := handler.RegisterHistoryRoutes(app, historyRepo, counter, loc); err != nil {
		return err
	}

	g, groupCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return worker.Start(groupCtx)
	})
	g.Go(func() error {
		logger.Info("responder api started", zap.Int("port", cfg.HTTPPort))
		return app.Listen(fmt.Sprintf(":%d", cfg.HTTPPort))
	})
	g.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutting down")
		return app.ShutdownWithTimeout(shutdownTimeout)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// newQueue returns the publisher and consumer sides of the configured queue
// along with what must be closed on shutdown.
func newQueue(cfg *config.Config, logger *zap.Logger) (queue.Publisher, queue.Consumer, io.Closer, error) {
	switch cfg.QueueDriver {
	case config.QueueDriverRabbitMQ:
		client, err := queue.NewRabbitMQ(queue.RabbitMQOptions{
			URL:        cfg.RabbitMQURL,
			MessageTTL: cfg.MissedCallMaxAge,
			Logger:     logger,
		})
		if err != nil {
			return nil, nil, nil, fmt.Errorf("rabbitmq initialization failed: %w", err)
		}
		return queue.NewRabbitMQPublisher(client),
			queue.NewRabbitMQConsumer(client, cfg.WorkerConcurrency, logger),
			client,
			nil
	default:
		q := queue.NewMemoryQueue(0, logger)
		return q, q, q, nil
	}
}
