package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

var (
	pgOnce  sync.Once
	pgURL   string
	pgError error
)

// postgresURL starts one container for the package and returns its DSN
func postgresURL(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("Integration test - requires docker")
	}

	pgOnce.Do(func() {
		ctx := context.Background()
		container, err := postgres.RunContainer(ctx,
			testcontainers.WithImage("postgres:15-alpine"),
			postgres.WithDatabase("fleamarket_test"),
			postgres.WithUsername("app"),
			postgres.WithPassword("secret"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(60*time.Second)),
		)
		if err != nil {
			pgError = err
			return
		}
		pgURL, pgError = container.ConnectionString(ctx, "sslmode=disable")
	})
	if pgError != nil {
		t.Skipf("Integration test - postgres container unavailable: %v", pgError)
	}
	return pgURL
}

func TestPostgresStore(t *testing.T) {
	url := postgresURL(t)

	runOrderStoreContract(t, func(t *testing.T) OrderStore {
		s, err := NewStore(url)
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })

		ctx := context.Background()
		require.NoError(t, s.Migrate(ctx))
		_, err = s.GetDB().ExecContext(ctx, "TRUNCATE payment_records, orders")
		require.NoError(t, err)
		return s
	})
}
