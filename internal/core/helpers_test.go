package core

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vkoudela/koldy/internal/config"
)

const usersSchema = `CREATE TABLE users (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	name       TEXT NOT NULL,
	email      TEXT UNIQUE,
	status     TEXT NOT NULL DEFAULT 'active',
	visits     INTEGER NOT NULL DEFAULT 0,
	created_at TEXT
)`

const postsSchema = `CREATE TABLE posts (
	id      INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER NOT NULL,
	title   TEXT NOT NULL
)`

func sqliteConn(t testing.TB) config.Connection {
	t.Helper()
	return config.Connection{
		Type:     config.TypeSQLite,
		Database: filepath.Join(t.TempDir(), "koldy.db"),
	}
}

// pgConn is never connected; it only selects the postgres dialect.
func pgConn() config.Connection {
	return config.Connection{Type: config.TypePostgres, Host: "127.0.0.1", Port: 1, Database: "app"}
}

// newTestAdapter returns a connected sqlite adapter with the users and posts
// tables created and seeded.
func newTestAdapter(t testing.TB, opts ...Option) *Adapter {
	t.Helper()
	a, err := NewAdapter("default", sqliteConn(t), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	ctx := context.Background()
	for _, stmt := range []string{usersSchema, postsSchema} {
		_, err := a.Execute(ctx, stmt, nil)
		require.NoError(t, err)
	}
	seed := []map[string]interface{}{
		{"name": "Alice", "email": "alice@example.com", "status": "active", "visits": 10},
		{"name": "Bob", "email": "bob@example.com", "status": "active", "visits": 3},
		{"name": "Carol", "email": "carol@example.com", "status": "banned", "visits": 7},
		{"name": "Dave", "email": "dave@example.com", "status": "active", "visits": 0},
	}
	ins := a.Insert("users")
	for _, row := range seed {
		ins.Add(row)
	}
	_, err = ins.Execute(ctx)
	require.NoError(t, err)

	_, err = a.Insert("posts").
		Add(map[string]interface{}{"user_id": 1, "title": "Hello"}).
		Add(map[string]interface{}{"user_id": 1, "title": "Again"}).
		Add(map[string]interface{}{"user_id": 2, "title": "Bob's post"}).
		Execute(ctx)
	require.NoError(t, err)
	return a
}

// newTestRegistry wraps a seeded adapter's connection in a registry with it
// as the default.
func newTestRegistry(t testing.TB, opts ...Option) *Registry {
	t.Helper()
	conn := sqliteConn(t)
	r := NewRegistry(&config.Config{
		Default:     "default",
		Connections: map[string]config.Connection{"default": conn},
	}, opts...)
	t.Cleanup(func() { _ = r.Close() })

	a, err := r.Default()
	require.NoError(t, err)
	ctx := context.Background()
	_, err = a.Execute(ctx, usersSchema, nil)
	require.NoError(t, err)
	_, err = a.Insert("users").
		Add(map[string]interface{}{"name": "Alice", "email": "alice@example.com", "visits": 10}).
		Add(map[string]interface{}{"name": "Bob", "email": "bob@example.com", "visits": 3}).
		Execute(ctx)
	require.NoError(t, err)
	return r
}

// statementLog records every statement an adapter runs.
type statementLog struct {
	mu     sync.Mutex
	events []QueryEvent
}

func (l *statementLog) hook(_ context.Context, e QueryEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *statementLog) reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = nil
}

func (l *statementLog) all() []QueryEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]QueryEvent(nil), l.events...)
}
