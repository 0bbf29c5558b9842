//go:build integration
// +build integration

package test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mysql"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/vkoudela/koldy"
)

// DatabaseSetup is one running database and a registry pointing at it.
type DatabaseSetup struct {
	Registry  *koldy.Registry
	Conn      koldy.Connection
	Container testcontainers.Container
}

// Close releases the registry and stops the container.
func (ds *DatabaseSetup) Close() {
	if ds.Registry != nil {
		_ = ds.Registry.Close()
	}
	if ds.Container != nil {
		_ = ds.Container.Terminate(context.Background())
	}
}

// Adapter returns the default adapter.
func (ds *DatabaseSetup) Adapter(t *testing.T) *koldy.Adapter {
	t.Helper()
	a, err := ds.Registry.Default()
	require.NoError(t, err)
	return a
}

func newSetup(t *testing.T, conn koldy.Connection, c testcontainers.Container) *DatabaseSetup {
	t.Helper()
	reg := koldy.NewRegistry(&koldy.Config{
		Default:     "main",
		Connections: map[string]koldy.Connection{"main": conn},
	})
	ds := &DatabaseSetup{Registry: reg, Conn: conn, Container: c}
	t.Cleanup(ds.Close)
	return ds
}

func endpoint(ctx context.Context, t *testing.T, c testcontainers.Container, port string) (string, int) {
	t.Helper()
	host, err := c.Host(ctx)
	require.NoError(t, err)
	mapped, err := c.MappedPort(ctx, port)
	require.NoError(t, err)
	return host, mapped.Int()
}

// SetupPostgres starts PostgreSQL in Docker, or skips the test.
func SetupPostgres(t *testing.T) *DatabaseSetup {
	ctx := context.Background()
	c, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Skip("Docker not available for PostgreSQL integration tests: " + err.Error())
	}

	host, port := endpoint(ctx, t, c, "5432/tcp")
	return newSetup(t, koldy.Connection{
		Type:     "postgres",
		Host:     host,
		Port:     port,
		Database: "testdb",
		Username: "user",
		Password: "password",
	}, c)
}

// SetupMySQL starts MySQL in Docker, or skips the test.
func SetupMySQL(t *testing.T) *DatabaseSetup {
	ctx := context.Background()
	c, err := mysql.Run(ctx,
		"mysql:8.0",
		mysql.WithDatabase("testdb"),
		mysql.WithUsername("user"),
		mysql.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("port: 3306  MySQL Community Server").
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Skip("Docker not available for MySQL integration tests: " + err.Error())
	}

	host, port := endpoint(ctx, t, c, "3306/tcp")
	return newSetup(t, koldy.Connection{
		Type:     "mysql",
		Host:     host,
		Port:     port,
		Database: "testdb",
		Username: "user",
		Password: "password",
		Charset:  "utf8mb4",
	}, c)
}

// CreateUsersTable creates the users table in the dialect of ds.
func CreateUsersTable(t *testing.T, ds *DatabaseSetup) {
	t.Helper()
	var ddl string
	switch ds.Conn.Type {
	case "postgres":
		ddl = `CREATE TABLE users (
			id SERIAL PRIMARY KEY,
			name VARCHAR(100) NOT NULL,
			email VARCHAR(200) UNIQUE,
			visits INTEGER NOT NULL DEFAULT 0
		)`
	case "mysql":
		ddl = `CREATE TABLE users (
			id INT AUTO_INCREMENT PRIMARY KEY,
			name VARCHAR(100) NOT NULL,
			email VARCHAR(200) UNIQUE,
			visits INT NOT NULL DEFAULT 0
		)`
	default:
		t.Fatalf("no users table for %s", ds.Conn.Type)
	}
	_, err := ds.Adapter(t).Execute(context.Background(), ddl, nil)
	require.NoError(t, err, fmt.Sprintf("create users on %s", ds.Conn.Type))
}
