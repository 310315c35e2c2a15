package testsupport

import (
	"os"
	"strconv"
	"testing"

	"github.com/jmoiron/sqlx"

	"arbiter/internal/adapters/config"
	"arbiter/internal/adapters/postgres"
)

// TestPostgres provides a database connection for integration tests.
type TestPostgres struct {
	client *postgres.Client
}

// NewTestPostgres connects to the database named by the POSTGRES_* env vars.
// The test is skipped when POSTGRES_HOST is unset.
func NewTestPostgres(t *testing.T) *TestPostgres {
	t.Helper()

	host := os.Getenv("POSTGRES_HOST")
	if host == "" {
		t.Skip("POSTGRES_HOST not set; skipping database integration test")
	}

	cfg := config.PostgresConfig{
		Host:     host,
		Port:     envInt("POSTGRES_PORT", 5432),
		User:     envDefault("POSTGRES_USER", "postgres"),
		Password: envDefault("POSTGRES_PASSWORD", "postgres"),
		Database: envDefault("POSTGRES_DB", "arbiter_test"),
		SSLMode:  envDefault("POSTGRES_SSL_MODE", "disable"),
		MaxConns: 5,
	}

	client, err := postgres.NewClient(cfg)
	if err != nil {
		t.Fatalf("failed to connect to test postgres: %v", err)
	}
	t.Cleanup(func() {
		_ = client.Close()
	})

	return &TestPostgres{client: client}
}

// DB returns the underlying database handle.
func (p *TestPostgres) DB() *sqlx.DB {
	return p.client.DB()
}

func envDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
