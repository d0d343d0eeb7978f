package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Kosench/tinylink/internal/config"
	"github.com/Kosench/tinylink/internal/database"
	"github.com/Kosench/tinylink/internal/handler"
	"github.com/Kosench/tinylink/internal/logger"
	"github.com/Kosench/tinylink/internal/repository"
	"github.com/Kosench/tinylink/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config: ", err)
	}

	zapLogger, err := logger.New(cfg.IsProduction(), cfg.Log.Level)
	if err != nil {
		log.Fatal("Failed to create logger: ", err)
	}
	defer func() { _ = zapLogger.Sync() }()

	if err := run(cfg, zapLogger); err != nil {
		zapLogger.Error("server stopped with error", zap.Error(err))
		_ = zapLogger.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config, zapLogger *zap.Logger) error {
	ctx := context.Background()

	linkRepo, closeStore, err := openStore(ctx, cfg, zapLogger)
	if err != nil {
		return err
	}
	defer closeStore()

	linkService := service.NewLinkService(linkRepo, zapLogger, service.Options{
		BaseURL:      cfg.GetBaseURL(),
		MaxRetries:   cfg.App.MaxRetries,
		ClickTimeout: cfg.App.ClickTimeout,
	})

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router, err := handler.NewRouter(handler.RouterConfig{
		LinkService:    linkService,
		Storage:        linkService,
		Driver:         cfg.Database.Driver,
		Logger:         zapLogger,
		AllowedOrigins: cfg.GetAllowedOrigins(),
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:           cfg.GetServerAddress(),
		Handler:        router,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	serverErr := make(chan error, 1)
	go func() {
		zapLogger.Info("server starting",
			zap.String("address", cfg.GetServerAddress()),
			zap.String("base_url", cfg.GetBaseURL()),
			zap.String("storage", cfg.Database.Driver))

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err, ok := <-serverErr:
		if ok {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case sig := <-quit:
		zapLogger.Info("shutting down server", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	zapLogger.Info("server gracefully stopped")
	return nil
}

// openStore подключает хранилище, выбранное database.driver
func openStore(ctx context.Context, cfg *config.Config, zapLogger *zap.Logger) (repository.LinkRepository, func(), error) {
	switch cfg.Database.Driver {
	case config.DriverPostgres:
		if cfg.Database.Migrate {
			if err := database.MigratePostgres(cfg.Database.URL, zapLogger); err != nil {
				return nil, nil, err
			}
		}

		pool, err := database.ConnectPostgres(ctx, database.PostgresConfig{
			URL:      cfg.Database.URL,
			MaxConns: cfg.Database.MaxConns,
			MinConns: cfg.Database.MinConns,
		})
		if err != nil {
			return nil, nil, err
		}

		if version, err := database.GetVersion(ctx, pool); err == nil {
			zapLogger.Info("connected to postgres", zap.String("version", version))
		}

		return repository.NewPostgresLinkRepository(pool), pool.Close, nil

	case config.DriverSQLite:
		db, err := database.ConnectSQLite(ctx, cfg.Database.URL)
		if err != nil {
			return nil, nil, err
		}

		zapLogger.Info("connected to sqlite", zap.String("dsn", cfg.Database.URL))
		return repository.NewSQLiteLinkRepository(db), func() {
			if err := db.Close(); err != nil {
				zapLogger.Warn("failed to close sqlite", zap.Error(err))
			}
		}, nil

	case config.DriverRedis:
		client, err := database.ConnectRedis(ctx, database.RedisConfig{
			URL:          cfg.Redis.URL,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			MaxRetries:   cfg.Redis.MaxRetries,
		})
		if err != nil {
			return nil, nil, err
		}

		zapLogger.Info("connected to redis", zap.String("namespace", cfg.Redis.Namespace))
		return repository.NewRedisLinkRepository(client, cfg.Redis.Namespace), func() {
			if err := client.Close(); err != nil {
				zapLogger.Warn("failed to close redis", zap.Error(err))
			}
		}, nil
	}

	return nil, nil, fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
}
