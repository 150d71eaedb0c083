// SPDX-License-Identifier: Apache-2.0

// Package testutils provides ephemeral database fixtures for package
// tests: a shared Postgres testcontainer for backends that need a real
// server, and an in-memory SQLite connection for everything else.
package testutils

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/url"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/butaneorm/butane/pkg/backend/sqlite"
	backendpg "github.com/butaneorm/butane/pkg/backend/postgres"
	"github.com/butaneorm/butane/pkg/conn"
)

const defaultPostgresVersion = "16.3"

// tConnStr holds the connection string to the container created by
// SharedPostgresTestMain, shared by every test in the package.
var tConnStr string

// SharedPostgresTestMain starts one Postgres container for an entire test
// binary; each test then creates its own scratch database inside it via
// WithPostgresConnection, so tests stay isolated without paying container
// startup cost per test.
func SharedPostgresTestMain(m *testing.M) {
	ctx := context.Background()

	waitForLogs := wait.
		ForLog("database system is ready to accept connections").
		WithOccurrence(2).
		WithStartupTimeout(30 * time.Second)

	pgVersion := os.Getenv("POSTGRES_VERSION")
	if pgVersion == "" {
		pgVersion = defaultPostgresVersion
	}

	ctr, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:"+pgVersion),
		testcontainers.WithWaitStrategy(waitForLogs))
	if err != nil {
		log.Printf("failed to start postgres container: %v", err)
		os.Exit(1)
	}

	tConnStr, err = ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		log.Printf("failed to read postgres connection string: %v", err)
		os.Exit(1)
	}

	exitCode := m.Run()

	if err := ctr.Terminate(ctx); err != nil {
		log.Printf("failed to terminate postgres container: %v", err)
	}
	os.Exit(exitCode)
}

// WithPostgresConnection creates a fresh scratch database in the shared
// container, opens a Connection against it, and passes both the
// Connection and its raw connection string to fn. The database is left
// in place for inspection; the container itself is torn down by
// SharedPostgresTestMain.
func WithPostgresConnection(t *testing.T, fn func(c *conn.Connection, connStr string)) {
	t.Helper()
	ctx := context.Background()

	admin, err := sql.Open("postgres", tConnStr)
	if err != nil {
		t.Fatalf("opening admin connection: %v", err)
	}
	t.Cleanup(func() { admin.Close() })

	dbName := "butane_test_" + uuid.NewString()[:8]
	if _, err := admin.ExecContext(ctx, fmt.Sprintf("CREATE DATABASE %s", pq.QuoteIdentifier(dbName))); err != nil {
		t.Fatalf("creating scratch database: %v", err)
	}

	u, err := url.Parse(tConnStr)
	if err != nil {
		t.Fatalf("parsing container connection string: %v", err)
	}
	u.Path = "/" + dbName
	connStr := u.String()

	c, err := conn.Open(ctx, backendpg.New(), connStr)
	if err != nil {
		t.Fatalf("opening scratch database connection: %v", err)
	}
	t.Cleanup(func() { c.Close() })

	fn(c, connStr)
}

// SQLiteConnection opens an in-memory SQLite connection for a single test,
// closing it on cleanup.
func SQLiteConnection(t *testing.T) *conn.Connection {
	t.Helper()
	c, err := conn.Open(context.Background(), sqlite.New(), ":memory:")
	if err != nil {
		t.Fatalf("opening in-memory sqlite connection: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}
