package dbtest

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"ms-events/internal/database/migrations"
	"ms-events/internal/logger"
)

// Postgres starts a disposable PostgreSQL container, applies the migrations
// and returns a connected bun DB. Skipped in short mode.
func Postgres(t *testing.T) *bun.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping PostgreSQL integration test in short mode")
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "eventhub",
				"POSTGRES_PASSWORD": "eventhub",
				"POSTGRES_DB":       "eventhub",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("Failed to start PostgreSQL container: %v", err)
	}
	t.Cleanup(func() { container.Terminate(ctx) })

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://eventhub:eventhub@%s:%s/eventhub?sslmode=disable", host, port.Port())

	runner := migrations.NewRunner(dsn, migrations.DefaultOptions(), logger.NewDiscardLogger())
	if err := runner.RunMigrations(); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}
	runner.Close()

	sqldb, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("Failed to open PostgreSQL: %v", err)
	}
	bunDB := bun.NewDB(sqldb, pgdialect.New())
	t.Cleanup(func() { bunDB.Close() })
	return bunDB
}
