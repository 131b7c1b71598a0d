package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"gitlab.ozon.dev/pupkingeorgij/returns-dashboard/internal/attachments"
	"gitlab.ozon.dev/pupkingeorgij/returns-dashboard/internal/cache"
	"gitlab.ozon.dev/pupkingeorgij/returns-dashboard/internal/config"
	"gitlab.ozon.dev/pupkingeorgij/returns-dashboard/internal/dashboard"
	"gitlab.ozon.dev/pupkingeorgij/returns-dashboard/internal/db"
	"gitlab.ozon.dev/pupkingeorgij/returns-dashboard/internal/grpcserver"
	"gitlab.ozon.dev/pupkingeorgij/returns-dashboard/internal/kafka"
	"gitlab.ozon.dev/pupkingeorgij/returns-dashboard/internal/logger"
	"gitlab.ozon.dev/pupkingeorgij/returns-dashboard/internal/repository/postgresql"
	"gitlab.ozon.dev/pupkingeorgij/returns-dashboard/internal/returns"
	"gitlab.ozon.dev/pupkingeorgij/returns-dashboard/internal/seed"
	"gitlab.ozon.dev/pupkingeorgij/returns-dashboard/internal/server"
	"gitlab.ozon.dev/pupkingeorgij/returns-dashboard/internal/storage"
)

const (
	janitorInterval     = time.Minute
	healthInterval      = 5 * time.Second
	outboxPollInterval  = time.Second
	outboxBatchSize     = 50
	outboxMaxAttempts   = 5
	auditWorkers        = 2
	auditBatchSize      = 5
	auditFlushTimeout   = 500 * time.Millisecond
	shutdownGracePeriod = 10 * time.Second
)

var (
	serveSkipMigrate   bool
	serveConsoleEvents bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the dashboard HTTP server, gRPC health service and outbox publisher",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveSkipMigrate, "skip-migrate", false, "Do not apply migrations on startup (postgres backend)")
	serveCmd.Flags().BoolVar(&serveConsoleEvents, "console-events", false, "Log events instead of publishing them to Kafka")
}

// backend is the store-dependent part of the application.
type backend struct {
	store     storage.Store
	events    storage.EventSink
	history   storage.StatusHistory
	publisher *kafka.Publisher
	close     func()
}

func newProducer(cfg config.Config, log *zap.Logger) kafka.Producer {
	if serveConsoleEvents || len(cfg.Kafka.Brokers) == 0 {
		return kafka.NewConsoleProducer(log)
	}
	return kafka.NewKafkaProducer(cfg.Kafka.Brokers, log)
}

func newBackend(ctx context.Context, cfg config.Config, log *zap.Logger) (*backend, error) {
	producer := newProducer(cfg, log)

	if cfg.Store.Backend == config.BackendMemory {
		store := storage.NewMemoryStore()
		fixtures, err := seed.Default()
		if err != nil {
			return nil, err
		}
		if err := seed.Apply(ctx, store, fixtures); err != nil {
			return nil, err
		}
		log.Info("memory store seeded", zap.Int("orders", len(fixtures.Orders)), zap.Int("requests", len(fixtures.Requests)))

		return &backend{
			store:   store,
			events:  kafka.NewDirectSink(producer),
			history: storage.NewMemoryHistory(),
			close: func() {
				if err := producer.Close(); err != nil {
					log.Error("failed to close producer", zap.Error(err))
				}
			},
		}, nil
	}

	if !serveSkipMigrate {
		if err := db.Migrate(ctx, cfg.DB); err != nil {
			return nil, err
		}
	}

	database, err := db.NewDb(ctx, cfg.DB)
	if err != nil {
		return nil, err
	}

	tasks := postgresql.NewOutboxTaskRepo(outboxMaxAttempts)
	return &backend{
		store:   storage.NewPostgresStore(database, postgresql.NewDocumentRepo(database), cfg.Store.ProjectID),
		events:  storage.NewOutboxSink(database, tasks),
		history: storage.NewPostgresHistory(database, postgresql.NewHistoryRepo(database), cfg.Store.ProjectID),
		publisher: kafka.NewPublisher(database, tasks, producer, kafka.PublisherConfig{
			PollInterval: outboxPollInterval,
			BatchSize:    outboxBatchSize,
			MaxAttempts:  outboxMaxAttempts,
		}, log),
		close: database.Close,
	}, nil
}

func newFileStore(ctx context.Context, cfg config.Config, log *zap.Logger) (returns.FileStore, error) {
	if cfg.S3.Endpoint == "" && cfg.S3.AccessKey == "" {
		log.Info("document storage disabled: S3_ENDPOINT and S3_ACCESS_KEY are empty")
		return nil, nil
	}
	files, err := attachments.NewS3Store(ctx, cfg.S3)
	if err != nil {
		return nil, err
	}
	log.Info("document storage enabled", zap.String("bucket", cfg.S3.Bucket))
	return files, nil
}

func runMetrics(ctx context.Context, port string, log *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: ":" + port, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("metrics server starting", zap.String("port", port))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := logger.New(cfg.LogLevel)
	defer func() { _ = log.Sync() }()

	be, err := newBackend(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("init %s backend: %w", cfg.Store.Backend, err)
	}
	defer be.close()

	files, err := newFileStore(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("init document storage: %w", err)
	}

	format := returns.NewFormatter(cfg.DateLayout, cfg.TimeLayout, cfg.Location)
	deps := dashboard.Deps{
		Orders:           returns.NewOrderSource(be.store, format),
		Requests:         returns.NewRequestSource(be.store, format),
		DebounceInterval: cfg.DebounceInterval,
		Logger:           log,
	}
	sessions := cache.NewSessionCache(func(id string) *dashboard.Session {
		return dashboard.NewSession(id, deps)
	}, cfg.SessionTTL, log)

	service := returns.NewService(be.store, be.events, be.history, files, cfg.Kafka.ActionsTopic, log)

	httpServer := server.New(server.Deps{
		Sessions: sessions,
		Actions:  service,
		Health:   be.store,
		Audit:    server.NewAuditManager(be.events, cfg.Kafka.AuditTopic, auditWorkers, auditBatchSize, auditFlushTimeout, log),
		Logger:   log,
	})
	health := grpcserver.NewServer(be.store, healthInterval, log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return httpServer.Run(gctx, cfg.HTTPPort) })
	g.Go(func() error { return health.Run(gctx, cfg.GRPCPort) })
	g.Go(func() error { return runMetrics(gctx, cfg.MetricsPort, log) })
	g.Go(func() error {
		sessions.RunJanitor(gctx, janitorInterval)
		return nil
	})
	if be.publisher != nil {
		g.Go(func() error {
			be.publisher.Run(gctx)
			return nil
		})
	}

	log.Info("dashboard started",
		zap.String("backend", cfg.Store.Backend),
		zap.String("http_port", cfg.HTTPPort),
		zap.String("grpc_port", cfg.GRPCPort))

	err = g.Wait()

	if be.publisher != nil {
		shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownGracePeriod)
		be.publisher.Shutdown(shutdownCtx)
		stop()
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("dashboard stopped")
	return nil
}
