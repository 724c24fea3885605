package db

import (
	"context"
	"fmt"
	"log"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/thanosan23/StockSim/internal/config"
)

// SetupTestDB connects to the local test database and makes sure the schema
// exists. Tests that need Postgres call this and skip when it is unreachable.
func SetupTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	cfg := &config.PostgresConfig{
		Host:     "localhost",
		Port:     "5433",
		Username: "trader",
		Password: "trading123",
		DBName:   "trading_db",
		SSLMode:  "disable",
	}

	database, err := Connect(cfg)
	if err != nil {
		t.Skipf("test database unavailable: %v", err)
	}

	if err := EnsureSchema(context.Background(), database); err != nil {
		t.Fatalf("Failed to apply schema: %v", err)
	}

	return database
}

// CleanupTestDB cleans up test data
func CleanupTestDB(t *testing.T, database *sqlx.DB) {
	t.Helper()

	tables := []string{"trades", "positions", "users"}
	for _, table := range tables {
		_, err := database.Exec(fmt.Sprintf("DELETE FROM %s WHERE id > 0", table))
		if err != nil {
			log.Printf("Warning: Failed to cleanup table %s: %v", table, err)
		}
	}
}

// CreateTestUser creates a test user and returns user ID
func CreateTestUser(t *testing.T, database *sqlx.DB, username string) int {
	t.Helper()

	var userID int

	// Make username unique by adding timestamp
	uniqueUsername := fmt.Sprintf("%s_%d", username, time.Now().UnixNano())

	err := database.QueryRow(
		"INSERT INTO users (username, password_hash) VALUES ($1, $2) RETURNING id",
		uniqueUsername, "x",
	).Scan(&userID)

	if err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}

	return userID
}
