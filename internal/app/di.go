// Package app provides dependency injection container for assembling application components.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/allisson/exactly-once/internal/config"
	"github.com/allisson/exactly-once/internal/database"
	executionRepository "github.com/allisson/exactly-once/internal/execution/repository"
	executionUsecase "github.com/allisson/exactly-once/internal/execution/usecase"
	"github.com/allisson/exactly-once/internal/http"
	idempotencyRepository "github.com/allisson/exactly-once/internal/idempotency/repository"
	idempotencyUsecase "github.com/allisson/exactly-once/internal/idempotency/usecase"
	"github.com/allisson/exactly-once/internal/metrics"
	outboxRepository "github.com/allisson/exactly-once/internal/outbox/repository"
	outboxUsecase "github.com/allisson/exactly-once/internal/outbox/usecase"
	sagaRepository "github.com/allisson/exactly-once/internal/saga/repository"
	sagaUsecase "github.com/allisson/exactly-once/internal/saga/usecase"
)

// Container holds all application dependencies and provides methods to access them.
// It follows the lazy initialization pattern - components are created on first access.
type Container struct {
	// Configuration
	config *config.Config

	// Infrastructure
	logger          *slog.Logger
	db              *sql.DB
	metricsProvider *metrics.Provider
	businessMetrics metrics.BusinessMetrics

	// Managers
	txManager database.TxManager

	// Repositories
	recordRepo    idempotencyUsecase.RecordRepository
	outboxRepo    outboxUsecase.EventRepository
	executionRepo executionUsecase.ExecutionRepository
	lockRepo      executionUsecase.LockRepository
	sagaRepo      sagaUsecase.SagaRepository

	// Use Cases
	store           idempotencyUsecase.Store
	outboxProcessor outboxUsecase.Processor
	executor        executionUsecase.Executor
	coordinator     sagaUsecase.Coordinator

	// Initialization flags for thread-safety
	mu                  sync.Mutex
	loggerInit          sync.Once
	dbInit              sync.Once
	metricsProviderInit sync.Once
	businessMetricsInit sync.Once
	txManagerInit       sync.Once
	recordRepoInit      sync.Once
	outboxRepoInit      sync.Once
	executionRepoInit   sync.Once
	lockRepoInit        sync.Once
	sagaRepoInit        sync.Once
	storeInit           sync.Once
	outboxProcessorInit sync.Once
	executorInit        sync.Once
	coordinatorInit     sync.Once
	initErrors          map[string]error
}

// NewContainer creates a new dependency injection container with the provided configuration.
func NewContainer(cfg *config.Config) *Container {
	return &Container{
		config:     cfg,
		initErrors: make(map[string]error),
	}
}

// Config returns the application configuration.
func (c *Container) Config() *config.Config {
	return c.config
}

// Logger returns the configured logger instance.
// It creates a new logger on first access based on the log level in configuration.
func (c *Container) Logger() *slog.Logger {
	c.loggerInit.Do(func() {
		c.logger = c.initLogger()
	})
	return c.logger
}

// DB returns the database connection.
// It creates and configures the database connection on first access.
func (c *Container) DB() (*sql.DB, error) {
	var err error
	c.dbInit.Do(func() {
		c.db, err = c.initDB()
		if err != nil {
			c.initErrors["db"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["db"]; exists {
		return nil, storedErr
	}
	return c.db, nil
}

// MetricsProvider returns the metrics provider, or nil when metrics are disabled.
func (c *Container) MetricsProvider() (*metrics.Provider, error) {
	var err error
	c.metricsProviderInit.Do(func() {
		if !c.config.MetricsEnabled {
			return
		}
		c.metricsProvider, err = metrics.NewProvider(c.config.MetricsNamespace)
		if err != nil {
			c.initErrors["metricsProvider"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["metricsProvider"]; exists {
		return nil, storedErr
	}
	return c.metricsProvider, nil
}

// BusinessMetrics returns the business metrics recorder. When metrics are
// disabled it returns a no-op implementation.
func (c *Container) BusinessMetrics() (metrics.BusinessMetrics, error) {
	var err error
	c.businessMetricsInit.Do(func() {
		c.businessMetrics, err = c.initBusinessMetrics()
		if err != nil {
			c.initErrors["businessMetrics"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["businessMetrics"]; exists {
		return nil, storedErr
	}
	return c.businessMetrics, nil
}

// TxManager returns the transaction manager.
// It requires a database connection to be initialized first.
func (c *Container) TxManager() (database.TxManager, error) {
	var err error
	c.txManagerInit.Do(func() {
		c.txManager, err = c.initTxManager()
		if err != nil {
			c.initErrors["txManager"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["txManager"]; exists {
		return nil, storedErr
	}
	return c.txManager, nil
}

// RecordRepository returns the idempotency record repository instance.
func (c *Container) RecordRepository() (idempotencyUsecase.RecordRepository, error) {
	var err error
	c.recordRepoInit.Do(func() {
		c.recordRepo, err = c.initRecordRepository()
		if err != nil {
			c.initErrors["recordRepo"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["recordRepo"]; exists {
		return nil, storedErr
	}
	return c.recordRepo, nil
}

// OutboxRepository returns the outbox event repository instance.
func (c *Container) OutboxRepository() (outboxUsecase.EventRepository, error) {
	var err error
	c.outboxRepoInit.Do(func() {
		c.outboxRepo, err = c.initOutboxRepository()
		if err != nil {
			c.initErrors["outboxRepo"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["outboxRepo"]; exists {
		return nil, storedErr
	}
	return c.outboxRepo, nil
}

// ExecutionRepository returns the execution result repository instance.
func (c *Container) ExecutionRepository() (executionUsecase.ExecutionRepository, error) {
	var err error
	c.executionRepoInit.Do(func() {
		c.executionRepo, err = c.initExecutionRepository()
		if err != nil {
			c.initErrors["executionRepo"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["executionRepo"]; exists {
		return nil, storedErr
	}
	return c.executionRepo, nil
}

// LockRepository returns the distributed lock repository instance.
func (c *Container) LockRepository() (executionUsecase.LockRepository, error) {
	var err error
	c.lockRepoInit.Do(func() {
		c.lockRepo, err = c.initLockRepository()
		if err != nil {
			c.initErrors["lockRepo"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["lockRepo"]; exists {
		return nil, storedErr
	}
	return c.lockRepo, nil
}

// SagaRepository returns the saga transaction repository instance.
func (c *Container) SagaRepository() (sagaUsecase.SagaRepository, error) {
	var err error
	c.sagaRepoInit.Do(func() {
		c.sagaRepo, err = c.initSagaRepository()
		if err != nil {
			c.initErrors["sagaRepo"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["sagaRepo"]; exists {
		return nil, storedErr
	}
	return c.sagaRepo, nil
}

// Store returns the idempotency store use case instance.
func (c *Container) Store() (idempotencyUsecase.Store, error) {
	var err error
	c.storeInit.Do(func() {
		c.store, err = c.initStore()
		if err != nil {
			c.initErrors["store"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["store"]; exists {
		return nil, storedErr
	}
	return c.store, nil
}

// OutboxProcessor returns the outbox processor use case instance.
func (c *Container) OutboxProcessor() (outboxUsecase.Processor, error) {
	var err error
	c.outboxProcessorInit.Do(func() {
		c.outboxProcessor, err = c.initOutboxProcessor()
		if err != nil {
			c.initErrors["outboxProcessor"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["outboxProcessor"]; exists {
		return nil, storedErr
	}
	return c.outboxProcessor, nil
}

// Executor returns the exactly-once executor use case instance.
func (c *Container) Executor() (executionUsecase.Executor, error) {
	var err error
	c.executorInit.Do(func() {
		c.executor, err = c.initExecutor()
		if err != nil {
			c.initErrors["executor"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["executor"]; exists {
		return nil, storedErr
	}
	return c.executor, nil
}

// Coordinator returns the saga coordinator use case instance.
func (c *Container) Coordinator() (sagaUsecase.Coordinator, error) {
	var err error
	c.coordinatorInit.Do(func() {
		c.coordinator, err = c.initCoordinator()
		if err != nil {
			c.initErrors["coordinator"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["coordinator"]; exists {
		return nil, storedErr
	}
	return c.coordinator, nil
}

// Shutdown performs cleanup of all initialized resources.
// It should be called when the application is shutting down.
func (c *Container) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var shutdownErrors []error

	if c.metricsProvider != nil {
		if err := c.metricsProvider.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("metrics provider shutdown: %w", err))
		}
	}

	if c.db != nil {
		if err := c.db.Close(); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("database close: %w", err))
		}
	}

	if len(shutdownErrors) > 0 {
		return fmt.Errorf("shutdown errors: %v", shutdownErrors)
	}

	return nil
}

// initLogger creates and configures a structured logger based on the log level.
func (c *Container) initLogger() *slog.Logger {
	var logLevel slog.Level
	switch c.config.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})

	return slog.New(handler)
}

// initDB creates and configures the database connection.
func (c *Container) initDB() (*sql.DB, error) {
	db, err := database.Connect(database.Config{
		Driver:             c.config.DBDriver,
		ConnectionString:   c.config.DBConnectionString,
		MaxOpenConnections: c.config.DBMaxOpenConnections,
		MaxIdleConnections: c.config.DBMaxIdleConnections,
		ConnMaxLifetime:    c.config.DBConnMaxLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// initBusinessMetrics creates the business metrics recorder.
func (c *Container) initBusinessMetrics() (metrics.BusinessMetrics, error) {
	provider, err := c.MetricsProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics provider: %w", err)
	}
	if provider == nil {
		return metrics.NewNoOpBusinessMetrics(), nil
	}

	businessMetrics, err := metrics.NewBusinessMetrics(provider.MeterProvider(), c.config.MetricsNamespace)
	if err != nil {
		return nil, fmt.Errorf("failed to create business metrics: %w", err)
	}
	return businessMetrics, nil
}

// initTxManager creates the transaction manager using the database connection.
func (c *Container) initTxManager() (database.TxManager, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for tx manager: %w", err)
	}
	return database.NewTxManager(db), nil
}

// initRecordRepository creates the idempotency record repository instance.
func (c *Container) initRecordRepository() (idempotencyUsecase.RecordRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for record repository: %w", err)
	}

	// Select the appropriate repository based on the database driver
	switch c.config.DBDriver {
	case "mysql":
		return idempotencyRepository.NewMySQLRecordRepository(db), nil
	case "postgres":
		return idempotencyRepository.NewPostgreSQLRecordRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

// initOutboxRepository creates the outbox event repository instance.
func (c *Container) initOutboxRepository() (outboxUsecase.EventRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for outbox repository: %w", err)
	}

	switch c.config.DBDriver {
	case "mysql":
		return outboxRepository.NewMySQLOutboxRepository(db), nil
	case "postgres":
		return outboxRepository.NewPostgreSQLOutboxRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

// initExecutionRepository creates the execution result repository instance.
func (c *Container) initExecutionRepository() (executionUsecase.ExecutionRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for execution repository: %w", err)
	}

	switch c.config.DBDriver {
	case "mysql":
		return executionRepository.NewMySQLExecutionRepository(db), nil
	case "postgres":
		return executionRepository.NewPostgreSQLExecutionRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

// initLockRepository creates the distributed lock repository instance.
func (c *Container) initLockRepository() (executionUsecase.LockRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for lock repository: %w", err)
	}

	switch c.config.DBDriver {
	case "mysql":
		return executionRepository.NewMySQLLockRepository(db), nil
	case "postgres":
		return executionRepository.NewPostgreSQLLockRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

// initSagaRepository creates the saga transaction repository instance.
func (c *Container) initSagaRepository() (sagaUsecase.SagaRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for saga repository: %w", err)
	}

	switch c.config.DBDriver {
	case "mysql":
		return sagaRepository.NewMySQLSagaRepository(db), nil
	case "postgres":
		return sagaRepository.NewPostgreSQLSagaRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

// initStore creates the idempotency store use case.
func (c *Container) initStore() (idempotencyUsecase.Store, error) {
	recordRepo, err := c.RecordRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get record repository for store: %w", err)
	}

	return idempotencyUsecase.NewIdempotencyStore(recordRepo, c.Logger()), nil
}

// initOutboxProcessor creates the outbox processor use case.
func (c *Container) initOutboxProcessor() (outboxUsecase.Processor, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for outbox processor: %w", err)
	}

	outboxRepo, err := c.OutboxRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get outbox repository for outbox processor: %w", err)
	}

	logger := c.Logger()
	processorConfig := outboxUsecase.Config{
		Interval:       c.config.OutboxPollInterval,
		BatchSize:      c.config.OutboxBatchSize,
		PublishTimeout: c.config.OutboxPublishTimeout,
	}

	publisher := outboxUsecase.LoggingPublisher(logger)
	return outboxUsecase.NewOutboxProcessor(processorConfig, txManager, outboxRepo, publisher, logger), nil
}

// initExecutor creates the exactly-once executor with metrics instrumentation.
func (c *Container) initExecutor() (executionUsecase.Executor, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for executor: %w", err)
	}

	executionRepo, err := c.ExecutionRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get execution repository for executor: %w", err)
	}

	lockRepo, err := c.LockRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get lock repository for executor: %w", err)
	}

	store, err := c.Store()
	if err != nil {
		return nil, fmt.Errorf("failed to get store for executor: %w", err)
	}

	outboxProcessor, err := c.OutboxProcessor()
	if err != nil {
		return nil, fmt.Errorf("failed to get outbox processor for executor: %w", err)
	}

	businessMetrics, err := c.BusinessMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to get business metrics for executor: %w", err)
	}

	executorConfig := executionUsecase.Config{
		LockTTL:        c.config.ExecutorLockTTL,
		PollInterval:   c.config.ExecutorPollInterval,
		DefaultTimeout: c.config.ExecutorDefaultTimeout,
		RecordTTL:      c.config.IdempotencyRecordTTL,
	}

	executor := executionUsecase.NewExactlyOnceExecutor(
		executorConfig,
		txManager,
		executionRepo,
		lockRepo,
		store,
		outboxProcessor,
		c.Logger(),
	)

	return executionUsecase.NewExecutorWithMetrics(executor, businessMetrics), nil
}

// initCoordinator creates the saga coordinator use case.
func (c *Container) initCoordinator() (sagaUsecase.Coordinator, error) {
	sagaRepo, err := c.SagaRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get saga repository for coordinator: %w", err)
	}

	coordinatorConfig := sagaUsecase.Config{
		MaxConcurrent: c.config.SagaMaxConcurrent,
		StepTimeout:   c.config.SagaStepTimeout,
		RetryAttempts: c.config.SagaRetryAttempts,
		RetryDelay:    c.config.SagaRetryDelay,
	}

	return sagaUsecase.NewSagaCoordinator(coordinatorConfig, sagaRepo, c.Logger()), nil
}

// HTTPServer creates the API server with all handlers and middleware wired.
func (c *Container) HTTPServer() (*http.Server, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for http server: %w", err)
	}

	logger := c.Logger()

	executor, err := c.Executor()
	if err != nil {
		return nil, fmt.Errorf("failed to get executor for http server: %w", err)
	}

	store, err := c.Store()
	if err != nil {
		return nil, fmt.Errorf("failed to get store for http server: %w", err)
	}

	outboxProcessor, err := c.OutboxProcessor()
	if err != nil {
		return nil, fmt.Errorf("failed to get outbox processor for http server: %w", err)
	}

	coordinator, err := c.Coordinator()
	if err != nil {
		return nil, fmt.Errorf("failed to get saga coordinator for http server: %w", err)
	}

	sagaHandler, err := sagaHTTPHandler(coordinator, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to register order placement saga: %w", err)
	}

	routerConfig := http.RouterConfig{
		ExecutionHandler: executionHTTPHandler(executor, c.config.ServiceName, logger),
		RecordHandler:    idempotencyHTTPHandler(store, logger),
		DLQHandler:       outboxHTTPHandler(outboxProcessor, logger),
		SagaHandler:      sagaHandler,
		IdempotencyMiddleware: idempotencyMiddleware(
			store,
			c.config.IdempotencyHeader,
			c.config.ServiceName,
			c.config.IdempotencyRecordTTL,
			logger,
		),
		CORSEnabled:      c.config.CORSEnabled,
		CORSAllowOrigins: c.config.CORSAllowOrigins,
	}

	if c.config.RateLimitEnabled {
		routerConfig.RateLimitMiddleware = http.RateLimitMiddleware(
			c.config.RateLimitRequestsPerSec,
			c.config.RateLimitBurst,
			logger,
		)
	}

	if c.config.MetricsEnabled {
		provider, err := c.MetricsProvider()
		if err != nil {
			return nil, fmt.Errorf("failed to get metrics provider for http server: %w", err)
		}
		if provider != nil {
			routerConfig.MetricsMiddleware = metrics.HTTPMetricsMiddleware(
				provider.MeterProvider(),
				c.config.MetricsNamespace,
			)
		}
	}

	server := http.NewServer(db, c.config.ServerHost, c.config.ServerPort, logger)
	server.SetupRouter(routerConfig)
	return server, nil
}

// MetricsServer creates the Prometheus metrics server, or nil when metrics are disabled.
func (c *Container) MetricsServer() (*http.MetricsServer, error) {
	if !c.config.MetricsEnabled {
		return nil, nil
	}

	provider, err := c.MetricsProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics provider for metrics server: %w", err)
	}

	return http.NewMetricsServer(c.config.ServerHost, c.config.MetricsPort, c.Logger(), provider), nil
}
