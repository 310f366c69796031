package testutil

import (
	"database/sql"
	"os"
	"testing"

	"github.com/xxxsen/careerrec/internal/config"
	"github.com/xxxsen/careerrec/internal/db"
)

// OpenTestDB connects to the postgres named by TEST_DB_HOST, skipping the test when unset.
// Tables touched by tests are truncated before returning.
func OpenTestDB(t *testing.T) (*sql.DB, func()) {
	t.Helper()
	host := os.Getenv("TEST_DB_HOST")
	if host == "" {
		t.Skip("TEST_DB_HOST not set, skipping postgres test")
	}
	conn, err := db.Open(config.DatabaseConfig{
		Host:     host,
		Port:     5432,
		User:     envOr("TEST_DB_USER", "careerrec"),
		Password: envOr("TEST_DB_PASSWORD", "careerrec_pass"),
		DBName:   envOr("TEST_DB_NAME", "careerrec_test"),
		SSLMode:  "disable",
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.ApplyMigrations(conn); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	for _, table := range []string{"resources", "resource_vectors", "embedding_cache"} {
		if _, err := conn.Exec("TRUNCATE TABLE " + table); err != nil {
			t.Fatalf("truncate %s: %v", table, err)
		}
	}
	return conn, func() {
		_ = conn.Close()
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
