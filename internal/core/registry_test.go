package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vkoudela/koldy/internal/config"
)

func TestRegistry_Default(t *testing.T) {
	r := NewRegistry(nil)

	_, err := r.Default()
	assert.ErrorIs(t, err, ErrNoDefaultConnection)

	require.NoError(t, r.Register("main", sqliteConn(t)))
	assert.ErrorIs(t, r.RegisterDefault("other"), ErrUnknownConnection)
	require.NoError(t, r.RegisterDefault("main"))
	assert.Equal(t, "main", r.DefaultName())

	a, err := r.Default()
	require.NoError(t, err)
	assert.Equal(t, "main", a.Name())

	same, err := r.Adapter("main")
	require.NoError(t, err)
	assert.Same(t, a, same)
	require.NoError(t, r.Close())
}

func TestRegistry_FromConfig(t *testing.T) {
	cfg := &config.Config{
		Default: "app",
		Connections: map[string]config.Connection{
			"app":     sqliteConn(t),
			"reports": pgConn(),
		},
	}
	r := NewRegistry(cfg)
	t.Cleanup(func() { _ = r.Close() })

	assert.Equal(t, []string{"app", "reports"}, r.Names())

	pg, err := r.Adapter("reports")
	require.NoError(t, err)
	assert.Equal(t, "postgres", pg.Dialect().Name())
	assert.False(t, pg.Connected())

	_, err = r.Adapter("missing")
	assert.ErrorIs(t, err, ErrUnknownConnection)
}

func TestRegistry_RegisterValidates(t *testing.T) {
	r := NewRegistry(nil)
	assert.Error(t, r.Register("bad", config.Connection{Type: "sqlite"}))
	assert.Error(t, r.Register("bad", config.Connection{Type: "oracle", Database: "x"}))
	assert.Empty(t, r.Names())
}

// TestRegistry_RegisterReplaces closes the adapter of a replaced connection.
func TestRegistry_RegisterReplaces(t *testing.T) {
	r := NewRegistry(nil)
	t.Cleanup(func() { _ = r.Close() })
	require.NoError(t, r.Register("main", sqliteConn(t)))

	old, err := r.Adapter("main")
	require.NoError(t, err)
	require.NoError(t, old.Connect(context.Background()))

	require.NoError(t, r.Register("main", sqliteConn(t)))
	assert.False(t, old.Connected())

	fresh, err := r.Adapter("main")
	require.NoError(t, err)
	assert.NotSame(t, old, fresh)
}

func TestRegistry_OptionsReachAdapters(t *testing.T) {
	var log statementLog
	r := newTestRegistry(t, WithQueryHook(log.hook))

	a, err := r.Default()
	require.NoError(t, err)
	log.reset()

	_, err = a.Select().From("users", "").Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, log.all(), 1)
}
