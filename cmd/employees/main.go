package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/odyssey-erp/employees-api/internal/apidocs"
	"github.com/odyssey-erp/employees-api/internal/app"
	"github.com/odyssey-erp/employees-api/internal/employees"
	"github.com/odyssey-erp/employees-api/internal/observability"
	"github.com/odyssey-erp/employees-api/internal/platform/cache"
	"github.com/odyssey-erp/employees-api/internal/platform/db"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	repo, closeStorage, err := openStorage(ctx, cfg, logger)
	if err != nil {
		logger.Error("open storage", slog.String("driver", cfg.DBDriver), slog.Any("error", err))
		os.Exit(1)
	}
	defer closeStorage()

	var readCache employees.ReadCache
	if cfg.CacheEnabled() {
		redisClient, err := cache.New(ctx, cfg.RedisAddr)
		if err != nil {
			logger.Warn("redis unavailable, serving reads uncached", slog.Any("error", err))
		} else {
			defer func() {
				if err := redisClient.Close(); err != nil {
					logger.Warn("redis close", slog.Any("error", err))
				}
			}()
			readCache = cache.NewVersioned(redisClient, "employees", cfg.CacheTTL).WithLogger(logger)
		}
	}

	metrics := observability.NewMetrics()
	service := employees.NewService(repo, readCache, logger)
	employeesHandler := employees.NewHandler(logger, service, metrics, cfg.UploadMaxBytes)

	docsHandler, err := apidocs.NewHandler()
	if err != nil {
		logger.Error("load api docs", slog.Any("error", err))
		os.Exit(1)
	}

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		EmployeesHandler: employeesHandler,
		DocsHandler:      docsHandler,
		Storage:          service,
		Metrics:          metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("driver", cfg.DBDriver), slog.Bool("cache", readCache != nil))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}

func openStorage(ctx context.Context, cfg *app.Config, logger *slog.Logger) (employees.Repository, func(), error) {
	switch cfg.DBDriver {
	case app.DriverPostgres:
		if cfg.DBAutoMigrate {
			if err := db.MigratePostgres(cfg.PGDSN, logger); err != nil {
				return nil, nil, err
			}
		}
		pool, err := db.New(ctx, cfg.PGDSN)
		if err != nil {
			return nil, nil, err
		}
		return employees.NewRepository(pool), pool.Close, nil
	case app.DriverSQLite:
		sqldb, err := db.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		if cfg.DBAutoMigrate {
			if err := db.MigrateSQLite(sqldb, logger); err != nil {
				_ = sqldb.Close()
				return nil, nil, err
			}
		}
		closeDB := func() {
			if err := sqldb.Close(); err != nil {
				logger.Warn("sqlite close", slog.Any("error", err))
			}
		}
		return employees.NewSQLiteRepository(sqldb), closeDB, nil
	default:
		return nil, nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}
}
