package testutil

import (
	"os"
	"testing"

	"github.com/code-sleuth/ike-wp/pkg/db"

	"github.com/joho/godotenv"
)

// LoadEnvFromFile loads KEY=value lines (optionally prefixed with "export")
// into the environment without overriding variables already set.
func LoadEnvFromFile(filepath string) error {
	return godotenv.Load(filepath)
}

// OpenTestDB connects to the Turso database named by TURSO_DATABASE_URL,
// skipping the test in short mode or when no database is configured.
func OpenTestDB(t *testing.T) *db.DB {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	_ = LoadEnvFromFile("../../../.env")
	if os.Getenv("TURSO_DATABASE_URL") == "" {
		t.Skip("TURSO_DATABASE_URL not set, skipping integration test")
	}

	database, err := db.NewConnection()
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	t.Cleanup(func() {
		_ = database.Close()
	})
	return database
}
