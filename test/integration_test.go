//go:build integration
// +build integration

package test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vkoudela/koldy"
)

func setups() map[string]func(*testing.T) *DatabaseSetup {
	return map[string]func(*testing.T) *DatabaseSetup{
		"postgres": SetupPostgres,
		"mysql":    SetupMySQL,
	}
}

func TestModelRoundTrip(t *testing.T) {
	for name, setup := range setups() {
		t.Run(name, func(t *testing.T) {
			ds := setup(t)
			CreateUsersTable(t, ds)
			ctx := context.Background()
			users := koldy.NewModel(ds.Registry, "users")

			rec, err := users.Create(ctx, map[string]interface{}{"name": "Alice", "email": "alice@example.com"})
			require.NoError(t, err)
			id, err := rec.Get("id")
			require.NoError(t, err)
			assert.Equal(t, int64(1), id)
			assert.Equal(t, int64(1), ds.Adapter(t).LastInsertID())

			_, err = users.Create(ctx, map[string]interface{}{"name": "Bob", "email": "bob@example.com", "visits": 4})
			require.NoError(t, err)

			found, ok, err := users.FetchOne(ctx, koldy.By("email", "bob@example.com"))
			require.NoError(t, err)
			require.True(t, ok)
			found.Set("name", "Robert")
			n, err := found.Save(ctx)
			require.NoError(t, err)
			assert.Equal(t, int64(1), n)

			n, err = users.Increment(ctx, "visits", koldy.ByKey(id), 3)
			require.NoError(t, err)
			assert.Equal(t, int64(1), n)

			unique, err := users.IsUniqueExcept(ctx, "email", "alice@example.com", "id", id)
			require.NoError(t, err)
			assert.True(t, unique)

			total, err := users.Count(ctx, koldy.AllRows)
			require.NoError(t, err)
			assert.Equal(t, int64(2), total)
		})
	}
}

func TestResultSetPaging(t *testing.T) {
	for name, setup := range setups() {
		t.Run(name, func(t *testing.T) {
			ds := setup(t)
			CreateUsersTable(t, ds)
			ctx := context.Background()
			a := ds.Adapter(t)

			ins := a.Insert("users")
			for _, n := range []string{"a", "b", "c", "d", "e"} {
				ins.Add(map[string]interface{}{"name": n, "visits": len(n)})
			}
			_, err := ins.Execute(ctx)
			require.NoError(t, err)

			rs := a.ResultSet()
			rs.From("users", "u", "name").WhereOp("u.visits", ">", 0).OrderBy("name", "DESC")
			rs.Page(2, 2)

			rows, err := rs.Fetch(ctx)
			require.NoError(t, err)
			require.Len(t, rows, 2)
			assert.Equal(t, "c", rows[0]["name"])

			total, err := rs.Count(ctx)
			require.NoError(t, err)
			assert.Equal(t, int64(5), total)
		})
	}
}

func TestStatementErrorKeepsConnection(t *testing.T) {
	for name, setup := range setups() {
		t.Run(name, func(t *testing.T) {
			ds := setup(t)
			CreateUsersTable(t, ds)
			ctx := context.Background()
			a := ds.Adapter(t)

			_, err := a.Insert("users").Add(map[string]interface{}{"name": "x", "email": "dup@example.com"}).Execute(ctx)
			require.NoError(t, err)
			_, err = a.Insert("users").Add(map[string]interface{}{"name": "y", "email": "dup@example.com"}).Execute(ctx)
			require.Error(t, err)

			var serr *koldy.StatementError
			require.True(t, errors.As(err, &serr))
			assert.NotEmpty(t, serr.Code)

			rows, err := a.Select().From("users", "").Fetch(ctx)
			require.NoError(t, err)
			assert.Len(t, rows, 1)
		})
	}
}

// TestBackupFallback points the primary at a closed port and the backup at
// the running server.
func TestBackupFallback(t *testing.T) {
	ds := SetupPostgres(t)
	ctx := context.Background()

	primary := ds.Conn
	primary.Port = 1
	primary.ConnectTimeout = 2 * time.Second
	primary.Backups = []koldy.Connection{ds.Conn}

	a, err := koldy.NewAdapter("fallback", primary)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	require.NoError(t, a.Ping(ctx))
	active, ok := a.ActiveConnection()
	require.True(t, ok)
	assert.Equal(t, ds.Conn.Port, active.Port)
}
