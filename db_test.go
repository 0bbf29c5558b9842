package koldy_test

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vkoudela/koldy"
)

func writeConfig(t *testing.T) (cfgPath, envPath string) {
	t.Helper()
	dir := t.TempDir()

	envPath = filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envPath, []byte("KOLDY_TEST_DB="+filepath.Join(dir, "app.db")+"\n"), 0o600))

	cfgPath = filepath.Join(dir, "database.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
default: app
connections:
  app:
    type: sqlite
    database: ${KOLDY_TEST_DB}
`), 0o600))
	return cfgPath, envPath
}

func TestOpen(t *testing.T) {
	cfgPath, envPath := writeConfig(t)

	reg, err := koldy.Open(cfgPath, envPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reg.Close() })

	db, err := reg.Default()
	require.NoError(t, err)
	assert.Equal(t, "app", db.Name())

	ctx := context.Background()
	_, err = db.Execute(ctx, "CREATE TABLE notes (id INTEGER PRIMARY KEY, body TEXT)", nil)
	require.NoError(t, err)

	notes := koldy.NewModel(reg, "notes")
	rec, err := notes.Create(ctx, map[string]interface{}{"body": "first"})
	require.NoError(t, err)
	id, _ := rec.Get("id")
	assert.Equal(t, int64(1), id)

	rec.Set("body", "edited")
	n, err := rec.Save(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = notes.Delete(ctx, nil)
	assert.ErrorIs(t, err, koldy.ErrUnconditionalWrite)
}

func TestOpen_MissingFile(t *testing.T) {
	_, err := koldy.Open(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestWithSlog(t *testing.T) {
	var buf bytes.Buffer
	handler := slog.NewTextHandler(&buf, &slog.HandlerOptions{
		Level:       slog.LevelDebug,
		ReplaceAttr: koldy.ReplaceLevel,
	})

	cfg, err := koldy.ParseConfig([]byte(`
default: app
connections:
  app:
    type: sqlite
    database: ` + filepath.Join(t.TempDir(), "app.db") + `
`))
	require.NoError(t, err)

	reg := koldy.NewRegistry(cfg, koldy.WithSlog(slog.New(handler)))
	t.Cleanup(func() { _ = reg.Close() })

	db, err := reg.Default()
	require.NoError(t, err)
	_, err = db.Execute(context.Background(), "SELECT :n AS n", koldy.Params{"n": 1})
	require.NoError(t, err)

	assert.Contains(t, buf.String(), "statement executed")
	assert.Contains(t, buf.String(), "connection=app")
}
