package testutil

import (
	"context"
	"database/sql"
	"os"
	"testing"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// SetupTestDB opens TEST_PG_DSN, resets the schema and hands the connection to migrate.
// It skips the test when TEST_PG_DSN is not set.
func SetupTestDB(t *testing.T, migrate func(context.Context, *sql.DB) error) *sql.DB {
	t.Helper()
	dsn := os.Getenv("TEST_PG_DSN")
	if dsn == "" {
		t.Skip("TEST_PG_DSN not set")
	}
	database, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	ctx := context.Background()
	for _, stmt := range []string{
		`DROP TABLE IF EXISTS vod_records CASCADE`,
		`DROP TABLE IF EXISTS schema_migrations CASCADE`,
	} {
		if _, err := database.ExecContext(ctx, stmt); err != nil {
			t.Logf("warning: reset statement failed: %v", err)
		}
	}
	if migrate != nil {
		if err := migrate(ctx, database); err != nil {
			database.Close()
			t.Fatalf("failed to run migrations: %v", err)
		}
	}
	t.Cleanup(func() {
		database.Close()
	})
	return database
}
