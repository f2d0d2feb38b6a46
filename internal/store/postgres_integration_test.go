//go:build integration

package store

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// postgresDescriptor returns a descriptor for CI_DATABASE_URL when set, or
// starts a throwaway PostgreSQL container.
func postgresDescriptor(t *testing.T) string {
	t.Helper()
	if url := os.Getenv("CI_DATABASE_URL"); url != "" {
		t.Log("Using external PostgreSQL from CI_DATABASE_URL")
		return url
	}

	ctx := context.Background()
	pgContainer, err := postgres.Run(ctx,
		"postgres:17-alpine",
		postgres.WithDatabase("shop"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(pgContainer); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	return connStr
}

func TestPostgres_ExecuteAndIntrospect(t *testing.T) {
	conn := postgresDescriptor(t)
	ctx := context.Background()

	db, err := Open(ctx, conn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	assert.Equal(t, EnginePostgres, db.Dialect().Engine)

	for _, stmt := range []string{
		`DROP TABLE IF EXISTS orders`,
		`DROP TABLE IF EXISTS customers`,
		`CREATE TABLE customers (id SERIAL PRIMARY KEY, name TEXT NOT NULL, region TEXT DEFAULT 'north')`,
		`CREATE TABLE orders (id SERIAL PRIMARY KEY, customer_id INT NOT NULL REFERENCES customers(id), total NUMERIC(10,2) NOT NULL)`,
	} {
		_, err := db.Execute(ctx, stmt)
		require.NoError(t, err, stmt)
	}

	res, err := db.Execute(ctx, `INSERT INTO customers (name) VALUES ('Ada'), ('Grace')`)
	require.NoError(t, err)
	require.False(t, res.ReturnsRows())
	assert.Equal(t, int64(2), *res.RowsAffected)

	res, err = db.Execute(ctx, `SELECT name, region FROM customers ORDER BY id`)
	require.NoError(t, err)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, "Ada", res.Rows[0]["name"])
	assert.Equal(t, "north", res.Rows[0]["region"])

	_, err = db.Execute(ctx, `SELECT missing FROM customers`)
	var qe *QueryError
	assert.True(t, errors.As(err, &qe))

	schema, err := db.Introspect(ctx)
	require.NoError(t, err)
	require.Contains(t, schema, "orders")
	orders := schema["orders"]
	require.Len(t, orders, 3)
	assert.True(t, orders[0].PrimaryKey)
	assert.Equal(t, "customers.id", orders[1].References)
	assert.False(t, orders[1].Nullable)
}
