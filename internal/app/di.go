// Package app provides dependency injection container for assembling application components.
package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/allisson/klaviyo-relay/internal/commerce/usecase"
	commerceHTTP "github.com/allisson/klaviyo-relay/internal/commerce/http"
	"github.com/allisson/klaviyo-relay/internal/config"
	"github.com/allisson/klaviyo-relay/internal/credentials"
	"github.com/allisson/klaviyo-relay/internal/database"
	dispatchDomain "github.com/allisson/klaviyo-relay/internal/dispatch/domain"
	dispatchHTTP "github.com/allisson/klaviyo-relay/internal/dispatch/http"
	dispatchRepository "github.com/allisson/klaviyo-relay/internal/dispatch/repository"
	dispatchUseCase "github.com/allisson/klaviyo-relay/internal/dispatch/usecase"
	apperrors "github.com/allisson/klaviyo-relay/internal/errors"
	"github.com/allisson/klaviyo-relay/internal/http"
	"github.com/allisson/klaviyo-relay/internal/klaviyo"
	"github.com/allisson/klaviyo-relay/internal/metrics"
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
	jobRepo dispatchUseCase.JobRepository

	// Clients
	klaviyoClient   *klaviyo.Client
	marketingClient usecase.MarketingClient

	// Use Cases
	dispatchUseCase *dispatchUseCase.DispatchUseCase
	relayUseCase    usecase.RelayUseCase

	// Servers
	httpServer    *http.Server
	metricsServer *http.MetricsServer

	// Initialization flags and mutex for thread-safety
	mu                  sync.Mutex
	loggerInit          sync.Once
	dbInit              sync.Once
	metricsProviderInit sync.Once
	businessMetricsInit sync.Once
	txManagerInit       sync.Once
	jobRepoInit         sync.Once
	klaviyoClientInit   sync.Once
	marketingClientInit sync.Once
	dispatchUseCaseInit sync.Once
	relayUseCaseInit    sync.Once
	httpServerInit      sync.Once
	metricsServerInit   sync.Once
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
func (c *Container) Logger() *slog.Logger {
	c.loggerInit.Do(func() {
		c.logger = c.initLogger()
	})
	return c.logger
}

// once runs init under the given Once and remembers its error under name.
func (c *Container) once(o *sync.Once, name string, init func() error) error {
	o.Do(func() {
		if err := init(); err != nil {
			c.mu.Lock()
			c.initErrors[name] = err
			c.mu.Unlock()
		}
	})
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.initErrors[name]
}

// DB returns the database connection.
func (c *Container) DB() (*sql.DB, error) {
	err := c.once(&c.dbInit, "db", func() (err error) {
		c.db, err = c.initDB()
		return err
	})
	if err != nil {
		return nil, err
	}
	return c.db, nil
}

// MetricsProvider returns the OpenTelemetry provider, or nil when metrics are disabled.
func (c *Container) MetricsProvider() (*metrics.Provider, error) {
	err := c.once(&c.metricsProviderInit, "metricsProvider", func() (err error) {
		c.metricsProvider, err = c.initMetricsProvider()
		return err
	})
	if err != nil {
		return nil, err
	}
	return c.metricsProvider, nil
}

// BusinessMetrics returns the business metrics recorder (a no-op when metrics are disabled).
func (c *Container) BusinessMetrics() (metrics.BusinessMetrics, error) {
	err := c.once(&c.businessMetricsInit, "businessMetrics", func() (err error) {
		c.businessMetrics, err = c.initBusinessMetrics()
		return err
	})
	if err != nil {
		return nil, err
	}
	return c.businessMetrics, nil
}

// TxManager returns the transaction manager.
func (c *Container) TxManager() (database.TxManager, error) {
	err := c.once(&c.txManagerInit, "txManager", func() (err error) {
		c.txManager, err = c.initTxManager()
		return err
	})
	if err != nil {
		return nil, err
	}
	return c.txManager, nil
}

// JobRepository returns the dispatch job repository for the configured driver.
func (c *Container) JobRepository() (dispatchUseCase.JobRepository, error) {
	err := c.once(&c.jobRepoInit, "jobRepo", func() (err error) {
		c.jobRepo, err = c.initJobRepository()
		return err
	})
	if err != nil {
		return nil, err
	}
	return c.jobRepo, nil
}

// KlaviyoClient returns the raw Klaviyo API client.
func (c *Container) KlaviyoClient() (*klaviyo.Client, error) {
	err := c.once(&c.klaviyoClientInit, "klaviyoClient", func() (err error) {
		c.klaviyoClient, err = c.initKlaviyoClient()
		return err
	})
	if err != nil {
		return nil, err
	}
	return c.klaviyoClient, nil
}

// MarketingClient returns the Klaviyo client wrapped with business metrics.
func (c *Container) MarketingClient() (usecase.MarketingClient, error) {
	err := c.once(&c.marketingClientInit, "marketingClient", func() (err error) {
		c.marketingClient, err = c.initMarketingClient()
		return err
	})
	if err != nil {
		return nil, err
	}
	return c.marketingClient, nil
}

// DispatchUseCase returns the dispatch queue. Its handlers resolve the Klaviyo client
// on first execution, so enqueue-only callers never need an API key.
func (c *Container) DispatchUseCase() (*dispatchUseCase.DispatchUseCase, error) {
	err := c.once(&c.dispatchUseCaseInit, "dispatchUseCase", func() (err error) {
		c.dispatchUseCase, err = c.initDispatchUseCase()
		return err
	})
	if err != nil {
		return nil, err
	}
	return c.dispatchUseCase, nil
}

// RelayUseCase returns the ingress use case.
func (c *Container) RelayUseCase() (usecase.RelayUseCase, error) {
	err := c.once(&c.relayUseCaseInit, "relayUseCase", func() (err error) {
		c.relayUseCase, err = c.initRelayUseCase()
		return err
	})
	if err != nil {
		return nil, err
	}
	return c.relayUseCase, nil
}

// HTTPServer returns the ingress HTTP server with its router installed.
func (c *Container) HTTPServer() (*http.Server, error) {
	err := c.once(&c.httpServerInit, "httpServer", func() (err error) {
		c.httpServer, err = c.initHTTPServer()
		return err
	})
	if err != nil {
		return nil, err
	}
	return c.httpServer, nil
}

// MetricsServer returns the Prometheus scrape server, or nil when metrics are disabled.
func (c *Container) MetricsServer() (*http.MetricsServer, error) {
	err := c.once(&c.metricsServerInit, "metricsServer", func() (err error) {
		c.metricsServer, err = c.initMetricsServer()
		return err
	})
	if err != nil {
		return nil, err
	}
	return c.metricsServer, nil
}

// Shutdown performs cleanup of all initialized resources.
// It should be called when the application is shutting down.
func (c *Container) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var shutdownErrors []error

	if c.httpServer != nil {
		if err := c.httpServer.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("http server shutdown: %w", err))
		}
	}

	if c.metricsServer != nil {
		if err := c.metricsServer.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("metrics server shutdown: %w", err))
		}
	}

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

	return errors.Join(shutdownErrors...)
}

// initLogger creates and configures a structured logger based on the log level.
func (c *Container) initLogger() *slog.Logger {
	var logLevel slog.Level
	switch c.config.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
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

func (c *Container) initDB() (*sql.DB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := database.Connect(ctx, database.Config{
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

func (c *Container) initMetricsProvider() (*metrics.Provider, error) {
	if !c.config.MetricsEnabled {
		return nil, nil
	}

	provider, err := metrics.NewProvider(c.config.MetricsNamespace)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics provider: %w", err)
	}
	return provider, nil
}

func (c *Container) initBusinessMetrics() (metrics.BusinessMetrics, error) {
	provider, err := c.MetricsProvider()
	if err != nil {
		return nil, err
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

func (c *Container) initTxManager() (database.TxManager, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for tx manager: %w", err)
	}
	return database.NewTxManager(db), nil
}

func (c *Container) initJobRepository() (dispatchUseCase.JobRepository, error) {
	switch c.config.DBDriver {
	case database.DriverMySQL, database.DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}

	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for job repository: %w", err)
	}

	if c.config.DBDriver == database.DriverMySQL {
		return dispatchRepository.NewMySQLJobRepository(db), nil
	}
	return dispatchRepository.NewPostgreSQLJobRepository(db), nil
}

func (c *Container) initKlaviyoClient() (*klaviyo.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	apiKey, err := credentials.ResolveAPIKey(ctx, credentials.Source{
		Plaintext:  c.config.KlaviyoAPIKey,
		Ciphertext: c.config.KlaviyoAPIKeyCiphertext,
		KeyURI:     c.config.KMSKeyURI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to resolve klaviyo api key: %w", err)
	}

	return klaviyo.NewClient(klaviyo.Config{
		APIKey:             apiKey,
		BaseURL:            c.config.KlaviyoAPIURL,
		Revision:           c.config.KlaviyoAPIRevision,
		Timeout:            c.config.KlaviyoHTTPTimeout,
		MaxAttempts:        c.config.KlaviyoHTTPMaxAttempts,
		RetryDelay:         c.config.KlaviyoHTTPRetryDelay,
		RateLimitPerSecond: c.config.KlaviyoRateLimitPerSec,
		RateLimitBurst:     c.config.KlaviyoRateLimitBurst,
	}, c.Logger()), nil
}

func (c *Container) initMarketingClient() (usecase.MarketingClient, error) {
	client, err := c.KlaviyoClient()
	if err != nil {
		return nil, err
	}
	businessMetrics, err := c.BusinessMetrics()
	if err != nil {
		return nil, err
	}
	return usecase.NewMarketingClientWithMetrics(client, businessMetrics), nil
}

func (c *Container) initDispatchUseCase() (*dispatchUseCase.DispatchUseCase, error) {
	logger := c.Logger()

	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for dispatch use case: %w", err)
	}
	repo, err := c.JobRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get job repository for dispatch use case: %w", err)
	}
	businessMetrics, err := c.BusinessMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to get business metrics for dispatch use case: %w", err)
	}

	policies := dispatchDomain.NewPolicySet(
		c.config.DispatchMaxAttempts,
		c.config.DispatchBackoff,
		c.config.DispatchEventTimeout,
		c.config.DispatchCatalogTimeout,
	)

	return dispatchUseCase.NewDispatchUseCase(
		dispatchUseCase.Config{
			EventsQueue:  c.config.DispatchEventsQueue,
			CatalogQueue: c.config.DispatchCatalogQueue,
			Workers:      c.config.DispatchWorkers,
			PollInterval: c.config.DispatchPollInterval,
			BatchSize:    c.config.DispatchBatchSize,
			Lease:        c.config.DispatchLease,
		},
		txManager,
		repo,
		c.lazyJobHandlers(),
		policies,
		businessMetrics,
		logger,
	), nil
}

// lazyJobHandlers defers building the marketing client until a job runs.
// A client that cannot be built fails the attempt as unavailable, so the job is retried.
func (c *Container) lazyJobHandlers() map[dispatchDomain.JobKind]dispatchDomain.Handler {
	var (
		once     sync.Once
		handlers map[dispatchDomain.JobKind]dispatchDomain.Handler
		initErr  error
	)
	resolve := func() (map[dispatchDomain.JobKind]dispatchDomain.Handler, error) {
		once.Do(func() {
			client, err := c.MarketingClient()
			if err != nil {
				initErr = err
				return
			}
			handlers = usecase.NewJobHandlers(usecase.NewActions(client, c.Logger()), c.Logger())
		})
		return handlers, initErr
	}

	lazy := make(map[dispatchDomain.JobKind]dispatchDomain.Handler, len(dispatchDomain.Kinds))
	for _, kind := range dispatchDomain.Kinds {
		lazy[kind] = func(ctx context.Context, payload json.RawMessage) error {
			resolved, err := resolve()
			if err != nil {
				return fmt.Errorf("%w: marketing client: %v", apperrors.ErrUnavailable, err)
			}
			handler, ok := resolved[kind]
			if !ok {
				return fmt.Errorf("%w: %s", dispatchDomain.ErrUnknownJobKind, kind)
			}
			return handler(ctx, payload)
		}
	}
	return lazy
}

func (c *Container) initRelayUseCase() (usecase.RelayUseCase, error) {
	dispatcher, err := c.DispatchUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get dispatch use case for relay use case: %w", err)
	}
	return usecase.NewRelayUseCase(dispatcher), nil
}

func (c *Container) initHTTPServer() (*http.Server, error) {
	logger := c.Logger()

	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for http server: %w", err)
	}
	relayUseCase, err := c.RelayUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get relay use case for http server: %w", err)
	}
	dispatcher, err := c.DispatchUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get dispatch use case for http server: %w", err)
	}
	provider, err := c.MetricsProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics provider for http server: %w", err)
	}

	server := http.NewServer(db, c.config.ServerHost, c.config.ServerPort, logger)
	server.SetupRouter(
		c.config,
		commerceHTTP.NewRelayHandler(relayUseCase, logger),
		dispatchHTTP.NewQueueHandler(dispatcher, logger),
		provider,
	)
	return server, nil
}

// initMetricsServer also registers the queue depth gauge, read from the job store on scrape
// and by the /ready probe.
func (c *Container) initMetricsServer() (*http.MetricsServer, error) {
	provider, err := c.MetricsProvider()
	if err != nil {
		return nil, err
	}
	if provider == nil {
		return nil, nil
	}

	dispatcher, err := c.DispatchUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get dispatch use case for metrics server: %w", err)
	}

	depth := queueDepth(dispatcher)
	err = metrics.RegisterQueueDepthGauge(
		provider.MeterProvider(),
		c.config.MetricsNamespace,
		depth,
		c.Logger(),
	)
	if err != nil {
		return nil, err
	}

	return http.NewMetricsServer(c.config.ServerHost, c.config.MetricsPort, c.Logger(), provider, depth), nil
}

// queueDepth adapts the dispatch stats to the gauge callback.
func queueDepth(dispatcher dispatchUseCase.UseCase) metrics.QueueDepthFunc {
	return func(ctx context.Context) (map[string]map[string]int64, error) {
		stats, err := dispatcher.Stats(ctx)
		if err != nil {
			return nil, err
		}

		depth := make(map[string]map[string]int64, len(stats))
		for _, s := range stats {
			counts := make(map[string]int64, len(s.Counts))
			for status, n := range s.Counts {
				counts[string(status)] = n
			}
			depth[s.Queue] = counts
		}
		return depth, nil
	}
}
