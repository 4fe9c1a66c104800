// Package dbtest opens an in-memory SQLite database with the application schema
// for repository tests.
package dbtest

import (
	"context"
	"database/sql"
	"testing"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "github.com/uptrace/bun/driver/sqliteshim"

	"ms-events/internal/models"
)

// Open returns a bun DB backed by a private in-memory SQLite database with the
// events, categories, participants and profiles tables created. Participants
// reference events with foreign keys enforced, as in the migrations.
func Open(t testing.TB) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to connect to in-memory database: %v", err)
	}
	// Every new connection to :memory: is a fresh database.
	sqldb.SetMaxOpenConns(1)

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())

	ctx := context.Background()
	// SQLite ignores REFERENCES clauses unless asked; match PostgreSQL.
	if _, err := bunDB.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("Failed to enable foreign keys: %v", err)
	}

	for _, model := range []interface{}{
		(*models.Profile)(nil),
		(*models.Category)(nil),
		(*models.Event)(nil),
	} {
		if _, err := bunDB.NewCreateTable().Model(model).Exec(ctx); err != nil {
			t.Fatalf("Failed to create table for %T: %v", model, err)
		}
	}
	_, err = bunDB.NewCreateTable().
		Model((*models.Participation)(nil)).
		ForeignKey(`("event_id") REFERENCES "events" ("id") ON DELETE CASCADE`).
		Exec(ctx)
	if err != nil {
		t.Fatalf("Failed to create table for participations: %v", err)
	}

	t.Cleanup(func() { bunDB.Close() })
	return bunDB
}
