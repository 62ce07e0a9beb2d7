package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/Mhixter/arapointx-sub002/internal/browser"
	"github.com/Mhixter/arapointx-sub002/internal/config"
	"github.com/Mhixter/arapointx-sub002/internal/provider"
	"github.com/Mhixter/arapointx-sub002/internal/worker"
	"github.com/Mhixter/arapointx-sub002/internal/worker/storage"
	"github.com/Mhixter/arapointx-sub002/shared/logger"
	"github.com/Mhixter/arapointx-sub002/shared/postgresql"
	"github.com/Mhixter/arapointx-sub002/shared/rabbitmq"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or flags")
	}

	// Parse command-line flags
	defaultConfigPath := os.Getenv("WORKER_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/worker-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateWorkerConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// Initialize logger
	appLogger, err := initLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	appLogger.Info("Starting worker service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
	)

	// Initialize PostgreSQL client
	dbClient, err := initPostgreSQL(&cfg.Database, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	appLogger.Info("Database connection established")

	// Initialize RabbitMQ client
	rabbitClient, err := initRabbitMQ(&cfg.RabbitMQ, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize RabbitMQ: %w", err)
	}

	appLogger.Info("RabbitMQ connection established")

	// Connect the headless browser that backs the session pool
	browserInstance, err := browser.Connect(&browser.Config{
		ControlURL: cfg.Browser.ControlURL,
		Headless:   cfg.Browser.Headless,
	})
	if err != nil {
		return fmt.Errorf("failed to connect browser: %w", err)
	}

	appLogger.Info("Browser connected",
		slog.Int("pool_size", cfg.Browser.PoolSize),
		slog.Bool("headless", cfg.Browser.Headless),
	)

	pool := browser.NewPool(
		browser.NewSessionFactory(browserInstance),
		browser.PoolConfig{
			Capacity:       cfg.Browser.PoolSize,
			AcquireTimeout: cfg.Browser.AcquireTimeout,
			SessionMaxAge:  cfg.Browser.SessionMaxAge,
			SessionMaxUses: cfg.Browser.SessionMaxUses,
		},
		appLogger.Logger,
	)

	// Provider registry reads portal config through a TTL cache so admin
	// updates land without a restart
	targetStore := provider.NewStore(dbClient.GetDB(), appLogger.Logger)
	targetCache := provider.NewCachedTargets(targetStore, cfg.Browser.ProviderCacheTTL)
	registry := provider.NewRegistry(targetCache, appLogger.Logger, provider.DefaultStrategies()...)

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Enqueue notifications collapse into wake signals; a missed one is
	// covered by the poll tick
	var wake <-chan struct{}
	deliveries, err := rabbitClient.Consume("verification-worker")
	if err != nil {
		appLogger.Warn("Failed to start consuming nudges, relying on polling",
			slog.Any("error", err),
		)
	} else {
		wake = worker.NudgeChannel(ctx, deliveries, appLogger.Logger)
	}

	// Create worker instance
	workerInstance := worker.NewWorker(&worker.Config{
		Logger:          appLogger.Logger,
		Store:           storage.NewStorage(dbClient.GetDB(), appLogger.Logger),
		Pool:            pool,
		Runner:          registry,
		Wake:            wake,
		Concurrency:     cfg.Worker.Concurrency,
		PollInterval:    cfg.Worker.PollInterval,
		JobTimeout:      cfg.Worker.JobTimeout,
		ReclaimInterval: cfg.Worker.ReclaimInterval,
		StaleAfter:      cfg.Worker.StaleAfter,
	})

	// Start worker in a goroutine
	errChan := make(chan error, 1)
	go func() {
		if err := workerInstance.Start(ctx); err != nil {
			errChan <- err
		}
	}()

	appLogger.Info("Worker service started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		appLogger.Info("Received signal, shutting down gracefully",
			slog.String("signal", sig.String()),
		)
	case err := <-errChan:
		appLogger.Error("Worker error",
			slog.Any("error", err),
		)
		return err
	}

	// Cancel context to stop worker
	cancel()

	// Give worker time to shutdown gracefully
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Worker.ShutdownTimeout)
	defer shutdownCancel()

	// Stop worker
	done := make(chan struct{})
	go func() {
		workerInstance.Stop()
		close(done)
	}()

	select {
	case <-done:
		appLogger.Info("Worker stopped gracefully")
	case <-shutdownCtx.Done():
		appLogger.Warn("Worker shutdown timeout exceeded, forcing exit")
	}

	// Cleanup function to close all resources
	cleanup := func() {
		pool.Close()
		if err := browserInstance.Close(); err != nil {
			appLogger.Warn("Failed to close browser", slog.Any("error", err))
		}
		if dbClient != nil {
			dbClient.Close()
		}
		if rabbitClient != nil {
			rabbitClient.Close()
		}
	}
	cleanup()

	appLogger.Info("Worker service shutdown complete")
	return nil
}

// initLogger initializes and configures the application logger
func initLogger(cfg *config.LoggingConfig) (*logger.Logger, error) {
	loggerCfg := &logger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		Output:       cfg.Output,
		EnableSource: cfg.EnableCaller,
		TimeFormat:   time.RFC3339,
	}

	return logger.New(loggerCfg)
}

// initPostgreSQL initializes the PostgreSQL database client
func initPostgreSQL(cfg *config.DatabaseConfig, logger *slog.Logger) (*postgresql.Client, error) {
	dbConfig := &postgresql.Config{
		Host:            cfg.Host,
		Port:            cfg.Port,
		User:            cfg.User,
		Password:        cfg.Password,
		Database:        cfg.Database,
		SSLMode:         cfg.SSLMode,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
	}

	return postgresql.NewClient(dbConfig, logger)
}

// initRabbitMQ initializes the RabbitMQ client
func initRabbitMQ(cfg *config.RabbitMQConfig, logger *slog.Logger) (*rabbitmq.Client, error) {
	rabbitConfig := &rabbitmq.Config{
		Host:               cfg.Host,
		Port:               cfg.Port,
		User:               cfg.User,
		Password:           cfg.Password,
		VHost:              cfg.VHost,
		ExchangeName:       cfg.Exchange.Name,
		ExchangeType:       cfg.Exchange.Type,
		ExchangeDurable:    cfg.Exchange.Durable,
		ExchangeAutoDelete: cfg.Exchange.AutoDelete,
		QueueName:          cfg.Queue.Name,
		QueueDurable:       cfg.Queue.Durable,
		QueueAutoDelete:    cfg.Queue.AutoDelete,
		QueueExclusive:     cfg.Queue.Exclusive,
		RoutingKey:         cfg.RoutingKey,
		RetryAttempts:      cfg.Connection.RetryAttempts,
		RetryInterval:      cfg.Connection.RetryInterval,
		Heartbeat:          cfg.Connection.Heartbeat,
		ConnectionTimeout:  cfg.Connection.ConnectionTimeout,
	}

	return rabbitmq.NewClient(rabbitConfig, logger)
}
