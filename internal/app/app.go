// Package app wires configuration, storage, the event bus, and both bounded
// contexts into one runnable process.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/Colauncha/Fixserv-sub001/internal/ack"
	"github.com/Colauncha/Fixserv-sub001/internal/config"
	orderevent "github.com/Colauncha/Fixserv-sub001/internal/order/event"
	orderhandler "github.com/Colauncha/Fixserv-sub001/internal/order/handler/http"
	orderpg "github.com/Colauncha/Fixserv-sub001/internal/order/repository/postgres"
	orderservice "github.com/Colauncha/Fixserv-sub001/internal/order/service"
	"github.com/Colauncha/Fixserv-sub001/internal/profile"
	reviewcache "github.com/Colauncha/Fixserv-sub001/internal/review/cache"
	reviewevent "github.com/Colauncha/Fixserv-sub001/internal/review/event"
	reviewhandler "github.com/Colauncha/Fixserv-sub001/internal/review/handler/http"
	reviewpg "github.com/Colauncha/Fixserv-sub001/internal/review/repository/postgres"
	reviewservice "github.com/Colauncha/Fixserv-sub001/internal/review/service"
	"github.com/Colauncha/Fixserv-sub001/internal/wallet"
	"github.com/Colauncha/Fixserv-sub001/migrations"
	"github.com/Colauncha/Fixserv-sub001/pkg/cache"
	"github.com/Colauncha/Fixserv-sub001/pkg/database"
	"github.com/Colauncha/Fixserv-sub001/pkg/eventbus"
	"github.com/Colauncha/Fixserv-sub001/pkg/httpclient"
	"github.com/Colauncha/Fixserv-sub001/pkg/tracing"
)

// App wires together all dependencies and runs the marketplace core.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	pool        *pgxpool.Pool
	redisClient *redis.Client
	bus         eventbus.Bus

	orderService  *orderservice.OrderService
	reviewService *reviewservice.ReviewService

	orderServer  *http.Server
	reviewServer *http.Server

	busSubs        []eventbus.Subscription
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize OpenTelemetry tracing.
	tracerShutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    "fixserv-core",
		ServiceVersion: "0.1.0",
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTELEndpoint,
		SampleRate:     cfg.OTELSampleRate,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	// PostgreSQL connection pool.
	pgCfg := database.PostgresConfig{
		Host:            cfg.PostgresHost,
		Port:            cfg.PostgresPort,
		User:            cfg.PostgresUser,
		Password:        cfg.PostgresPass,
		DBName:          cfg.PostgresDB,
		SSLMode:         cfg.PostgresSSL,
		MaxConns:        cfg.DBMaxConns,
		MinConns:        cfg.DBMinConns,
		MaxConnLifetime: time.Duration(cfg.DBMaxConnLifetimeMins) * time.Minute,
		MaxConnIdleTime: time.Duration(cfg.DBMaxConnIdleTimeMins) * time.Minute,
	}
	pool, err := database.NewPostgresPool(ctx, &pgCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	logger.Info("connected to PostgreSQL",
		slog.String("host", cfg.PostgresHost),
		slog.Int("port", cfg.PostgresPort),
		slog.String("database", cfg.PostgresDB),
	)

	if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database migrations completed")

	// Event bus and cache store, selected by backend.
	var (
		bus         eventbus.Bus
		store       cache.Store
		redisClient *redis.Client
	)
	switch cfg.EventBus {
	case config.BusMemory:
		// Single-process deployment: in-memory bus and cache.
		bus = eventbus.NewMemoryBus(logger)
		store = cache.NewMemoryStore()
	case config.BusRedis, config.BusKafka:
		redisClient, err = database.NewRedisClient(ctx, database.RedisConfig{
			Host:     cfg.RedisHost,
			Port:     cfg.RedisPort,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		store = cache.NewRedisStore(redisClient)

		if cfg.EventBus == config.BusRedis {
			bus = eventbus.NewRedisBus(redisClient, logger)
		} else {
			bus = eventbus.NewKafkaBus(eventbus.DefaultKafkaConfig(cfg.KafkaBrokers, "fixserv-core"), logger)
		}
	}
	logger.Info("event bus initialized", slog.String("backend", cfg.EventBus))

	// HTTP client with circuit breaker for peer service calls.
	baseClient := httpclient.New(httpclient.Config{
		Timeout:         10 * time.Second,
		MaxRetries:      3,
		RetryWaitMin:    500 * time.Millisecond,
		RetryWaitMax:    5 * time.Second,
		MaxConnsPerHost: 100,
	})
	cbClient := httpclient.NewCircuitBreakerClient(baseClient, httpclient.CircuitBreakerConfig{
		Name:         "fixserv-peers",
		MaxRequests:  cfg.CBMaxRequests,
		Interval:     time.Duration(cfg.CBInterval) * time.Second,
		Timeout:      time.Duration(cfg.CBTimeout) * time.Second,
		FailureRatio: cfg.CBFailureRatio,
		MinRequests:  cfg.CBMinRequests,
	}, logger)

	profiles := profile.NewHTTPClient(cbClient, cfg.UserServiceURL, cfg.ServiceServiceURL, logger)
	walletClient := wallet.NewHTTPClient(cbClient, cfg.WalletServiceURL, logger)

	// Order context.
	orderRepo := orderpg.NewOrderRepository(pool)
	escrowRepo := orderpg.NewEscrowRepository(pool)
	orderSvc := orderservice.NewOrderService(
		orderRepo, escrowRepo, walletClient, profiles,
		orderevent.NewProducer(bus, logger), logger,
	)

	// Review context.
	reviewRepo := reviewpg.NewReviewRepository(pool)
	reviewSvc := reviewservice.NewReviewService(
		reviewRepo,
		profiles,
		reviewevent.NewProducer(bus, logger),
		ack.NewCorrelator(bus, logger),
		reviewcache.NewInvalidator(store, logger),
		store,
		logger,
	)
	reviewSvc.SetAckTimeout(time.Duration(cfg.AckTimeoutSecs) * time.Second)

	app := &App{
		cfg:            cfg,
		logger:         logger,
		pool:           pool,
		redisClient:    redisClient,
		bus:            bus,
		orderService:   orderSvc,
		reviewService:  reviewSvc,
		tracerShutdown: tracerShutdown,
	}

	// Peer rating handlers acknowledge review publications. Each peer keeps
	// its own idempotency store: both see the same event ids and must
	// deduplicate independently.
	idemTTL := time.Duration(cfg.IdempotencyTTLMins) * time.Minute
	artisanHandler := reviewevent.NewArtisanRatingHandler(reviewRepo, profiles, bus, logger)
	serviceHandler := reviewevent.NewServiceRatingHandler(reviewRepo, profiles, bus, logger)
	for _, h := range []eventbus.Handler{
		artisanHandler.Handler(eventbus.NewMemoryIdempotencyStore(idemTTL)),
		serviceHandler.Handler(eventbus.NewMemoryIdempotencyStore(idemTTL)),
	} {
		sub, err := bus.Subscribe(reviewevent.Topic, h)
		if err != nil {
			app.closeInfra()
			return nil, fmt.Errorf("subscribe rating handler: %w", err)
		}
		app.busSubs = append(app.busSubs, sub)
	}

	// Order events feed the consumption and escrow-amount counters.
	metricsSub, err := bus.Subscribe(orderevent.Topic, orderevent.MetricsHandler())
	if err != nil {
		app.closeInfra()
		return nil, fmt.Errorf("subscribe order metrics handler: %w", err)
	}
	app.busSubs = append(app.busSubs, metricsSub)

	app.orderServer = newHTTPServer(cfg.OrderHTTPPort, orderhandler.NewRouter(orderSvc, logger))
	app.reviewServer = newHTTPServer(cfg.ReviewHTTPPort, reviewhandler.NewRouter(reviewSvc, logger))

	return app, nil
}

func newHTTPServer(port int, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// Run starts both HTTP servers and the expiry sweep, and blocks until the
// context is canceled or a server fails.
func (a *App) Run(ctx context.Context) error {
	// Reviews stranded in processing by a previous crash go back to pending
	// before traffic arrives.
	if err := a.reviewService.RecoverInterrupted(ctx); err != nil {
		a.logger.Error("failed to recover interrupted reviews", slog.String("error", err.Error()))
	}

	errCh := make(chan error, 2)
	for _, srv := range []*http.Server{a.orderServer, a.reviewServer} {
		srv := srv
		go func() {
			a.logger.Info("starting HTTP server", slog.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errCh <- fmt.Errorf("http server %s: %w", srv.Addr, err)
			}
		}()
	}

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go a.runExpirySweep(sweepCtx)

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		return err
	}

	return a.Shutdown()
}

// runExpirySweep periodically expires pending orders whose response window
// has lapsed without the artisan answering.
func (a *App) runExpirySweep(ctx context.Context) {
	interval := time.Duration(a.cfg.ExpirySweepMins) * time.Minute
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	a.logger.Info("expiry sweep started", slog.Duration("interval", interval))
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := a.orderService.ExpirePending(ctx); err != nil {
				a.logger.Error("expiry sweep failed", slog.String("error", err.Error()))
			}
		}
	}
}

// Shutdown gracefully stops all components: drain HTTP, flush spans, detach
// bus subscriptions, close the bus, then the storage clients.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	httpCtx, httpCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer httpCancel()
	for _, srv := range []*http.Server{a.orderServer, a.reviewServer} {
		if err := srv.Shutdown(httpCtx); err != nil {
			a.logger.Error("http server shutdown error",
				slog.String("addr", srv.Addr),
				slog.String("error", err.Error()),
			)
			errs = append(errs, err)
		}
	}

	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	errs = append(errs, a.closeInfra()...)

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}

func (a *App) closeInfra() []error {
	var errs []error

	for _, sub := range a.busSubs {
		if err := sub.Unsubscribe(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.bus != nil {
		if err := a.bus.Close(); err != nil {
			a.logger.Error("event bus close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
	return errs
}
