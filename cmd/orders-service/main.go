// Command orders-service serves the order fulfillment core over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/matheusmosca/scm-orders/internal/config"
	"github.com/matheusmosca/scm-orders/internal/httpapi"
	"github.com/matheusmosca/scm-orders/internal/lock"
	"github.com/matheusmosca/scm-orders/internal/orders"
	"github.com/matheusmosca/scm-orders/internal/store/postgres"
	"github.com/matheusmosca/scm-orders/internal/store/sqlite"
	"github.com/matheusmosca/scm-orders/internal/telemetry"
)

func main() {
	if err := run(); err != nil {
		slog.Error("❌ orders service stopped", "error", err)
		os.Exit(1)
	}
}

// store agrupa o que cada driver entrega para a montagem do serviço
type store struct {
	repository orders.Repository
	routines   orders.Routines
	pinger     httpapi.Pinger
	close      func()
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := telemetry.NewLogger(os.Stdout, cfg.ServiceName)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize OpenTelemetry
	providers, err := telemetry.Setup(ctx, cfg.ServiceName, cfg.OTLPEndpoint, cfg.OTelEnabled)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			logger.Error("error shutting down telemetry", "error", err)
		}
	}()

	// Initialize database
	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.close()

	locker, closeLocker, err := newLocker(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeLocker()

	// Initialize dependencies
	metrics := orders.NewMetrics(providers.Meter)
	opts := []orders.Option{
		orders.WithLogger(logger),
		orders.WithTracer(providers.Tracer),
		orders.WithMeter(providers.Meter),
		orders.WithStoreTimeout(cfg.StoreTimeout),
		orders.WithStockPolicy(cfg.StockPolicy),
	}

	manual := orders.NewManualFulfillment(st.repository, cfg.StockPolicy, logger)
	var fulfillment orders.Fulfillment = manual
	if cfg.UseDBRoutines {
		fulfillment = orders.NewFallbackFulfillment(
			orders.NewRoutineFulfillment(st.routines, cfg.StockPolicy, logger),
			manual,
			logger,
			metrics.Fallbacks,
		)
	}

	status := orders.NewStatusService(st.repository, locker, metrics, opts...)
	orderUseCase := orders.NewOrderUseCase(st.repository, fulfillment, status, locker, metrics, opts...)
	paymentUseCase := orders.NewPaymentUseCase(st.repository, status, locker, metrics, opts...)

	gin.SetMode(gin.ReleaseMode)
	handler := httpapi.NewHandler(cfg.ServiceName, orderUseCase, paymentUseCase, st.pinger)
	router := httpapi.NewRouter(cfg.ServiceName, handler, logger)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("🚀 orders service listening",
			"port", cfg.Port,
			"store", cfg.StoreDriver,
			"db_routines", cfg.UseDBRoutines,
			"stock_policy", cfg.StockPolicy,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("🛑 shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (*store, error) {
	switch cfg.StoreDriver {
	case config.DriverSQLite:
		var opts []sqlite.Option
		if !cfg.UseDBRoutines {
			opts = append(opts, sqlite.WithoutRoutines())
		}
		repo, err := sqlite.Open(cfg.SQLitePath, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		logger.Info("✅ sqlite store ready", "path", cfg.SQLitePath, "build", sqlite.BuildMode)
		return &store{
			repository: repo,
			routines:   repo,
			pinger:     repo,
			close:      func() { _ = repo.Close() },
		}, nil

	default:
		dsn := cfg.PostgresDSN()
		if cfg.MigrateOnStart {
			if err := postgres.Migrate(ctx, dsn, logger); err != nil {
				return nil, fmt.Errorf("failed to migrate database: %w", err)
			}
		}
		pool, err := postgres.Connect(ctx, dsn, cfg.DatabaseMaxConns, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		return &store{
			repository: postgres.NewOrderRepository(pool),
			routines:   postgres.NewRoutines(pool),
			pinger:     pool,
			close:      pool.Close,
		}, nil
	}
}

// newLocker usa o lock do Redis quando há mais de uma instância (REDIS_ADDR definido)
func newLocker(ctx context.Context, cfg config.Config, logger *slog.Logger) (orders.Locker, func(), error) {
	if cfg.RedisAddr == "" {
		return lock.NewLocal(), func() {}, nil
	}

	// The lease outlives the longest unit of work, which the store timeout bounds.
	r := lock.NewRedis(cfg.RedisAddr, cfg.ServiceName, 2*cfg.StoreTimeout)
	if err := r.Ping(ctx); err != nil {
		_ = r.Close()
		return nil, nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.RedisAddr, err)
	}
	logger.Info("✅ using redis order locks", "addr", cfg.RedisAddr)
	return r, func() { _ = r.Close() }, nil
}
