// Package testutil поднимает PostgreSQL и Redis в testcontainers для интеграционных тестов.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/Kosench/tinylink/internal/database"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
)

// SkipIfShort пропускает тесты, которым нужен Docker
func SkipIfShort(t testing.TB) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping container test in -short mode")
	}
}

// StartPostgres запускает PostgreSQL, применяет миграции и возвращает пул
func StartPostgres(t testing.TB) *pgxpool.Pool {
	t.Helper()

	dsn := StartPostgresContainer(t)

	if err := database.MigratePostgres(dsn, zap.NewNop()); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	pool, err := database.ConnectPostgres(context.Background(), database.PostgresConfig{URL: dsn, MaxConns: 20})
	if err != nil {
		t.Fatalf("failed to connect postgres: %v", err)
	}
	t.Cleanup(pool.Close)

	return pool
}

// StartPostgresContainer запускает пустой PostgreSQL без миграций и возвращает DSN
func StartPostgresContainer(t testing.TB) string {
	t.Helper()
	SkipIfShort(t)

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("tinylink"),
		tcpostgres.WithUsername("tinylink"),
		tcpostgres.WithPassword("tinylink"),
		tc.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get postgres connection string: %v", err)
	}

	return dsn
}

// TruncateLinks очищает таблицу между подтестами
func TruncateLinks(t testing.TB, pool *pgxpool.Pool) {
	t.Helper()

	if _, err := pool.Exec(context.Background(), "TRUNCATE TABLE links RESTART IDENTITY"); err != nil {
		t.Fatalf("failed to truncate links: %v", err)
	}
}

// StartRedis запускает Redis и возвращает подключенного клиента
func StartRedis(t testing.TB) *redis.Client {
	t.Helper()
	SkipIfShort(t)

	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		t.Fatalf("failed to start redis container: %v", err)
	}
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	endpoint, err := container.Endpoint(ctx, "")
	if err != nil {
		t.Fatalf("failed to get redis endpoint: %v", err)
	}

	client, err := database.ConnectRedis(ctx, database.RedisConfig{URL: "redis://" + endpoint, PoolSize: 20})
	if err != nil {
		t.Fatalf("failed to connect redis: %v", err)
	}
	t.Cleanup(func() {
		_ = client.Close()
	})

	return client
}

// FlushRedis очищает Redis между подтестами
func FlushRedis(t testing.TB, client *redis.Client) {
	t.Helper()

	if err := client.FlushDB(context.Background()).Err(); err != nil {
		t.Fatalf("failed to flush redis: %v", err)
	}
}
