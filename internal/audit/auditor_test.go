package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vkoudela/koldy/internal/config"
	"github.com/vkoudela/koldy/internal/core"
)

func newTestAuditor(level Level) (*Auditor, *bytes.Buffer) {
	var buf bytes.Buffer
	return New(slog.New(slog.NewJSONHandler(&buf, nil)), level), &buf
}

func decodeEvents(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestAuditor_Levels(t *testing.T) {
	tests := []struct {
		level Level
		op    string
		want  bool
	}{
		{None, "INSERT", false},
		{Writes, "INSERT", true},
		{Writes, "UPDATE", true},
		{Writes, "DELETE", true},
		{Writes, "SELECT", false},
		{Writes, "UNKNOWN", false},
		{All, "SELECT", true},
		{All, "UNKNOWN", true},
	}
	for _, tt := range tests {
		a, buf := newTestAuditor(tt.level)
		a.Record(context.Background(), core.QueryEvent{Operation: tt.op, SQL: "x"})
		assert.Equal(t, tt.want, buf.Len() > 0, "level %d op %s", tt.level, tt.op)
	}
}

func TestAuditor_Event(t *testing.T) {
	a, buf := newTestAuditor(Writes)
	ctx := WithRequestID(WithClientIP(WithUser(context.Background(), "alice"), "10.0.0.1"), "req-1")

	a.Record(ctx, core.QueryEvent{
		Connection:   "main",
		Operation:    "UPDATE",
		SQL:          "UPDATE users SET password = ? WHERE (id = ?)",
		Args:         []interface{}{"hunter2", 5},
		RowsAffected: 1,
		Duration:     3 * time.Millisecond,
	})

	events := decodeEvents(t, buf)
	require.Len(t, events, 1)
	e := events[0]
	assert.Equal(t, "INFO", e["level"])
	assert.Equal(t, "audit_event", e["msg"])
	assert.Equal(t, "main", e["connection"])
	assert.Equal(t, "users", e["table"])
	assert.Equal(t, "alice", e["user"])
	assert.Equal(t, "10.0.0.1", e["client_ip"])
	assert.Equal(t, "req-1", e["request_id"])
	assert.Equal(t, true, e["success"])
	assert.Equal(t, float64(1), e["rows_affected"])
	assert.Len(t, e["params_hash"], 64)
	assert.NotContains(t, buf.String(), "hunter2")
}

func TestAuditor_Failure(t *testing.T) {
	a, buf := newTestAuditor(All)
	a.Record(context.Background(), core.QueryEvent{
		Operation: "DELETE",
		SQL:       "DELETE FROM posts",
		Error:     errors.New("locked"),
	})

	events := decodeEvents(t, buf)
	require.Len(t, events, 1)
	assert.Equal(t, "WARN", events[0]["level"])
	assert.Equal(t, false, events[0]["success"])
	assert.Equal(t, "locked", events[0]["error"])
	assert.Equal(t, "", events[0]["params_hash"])
}

func TestAuditor_NilLogger(t *testing.T) {
	a := New(nil, All)
	assert.NotPanics(t, func() {
		a.Record(context.Background(), core.QueryEvent{Operation: "INSERT"})
	})
}

func TestHashArgs(t *testing.T) {
	assert.Empty(t, hashArgs(nil))
	assert.Equal(t, hashArgs([]interface{}{1, "a"}), hashArgs([]interface{}{1, "a"}))
	assert.NotEqual(t, hashArgs([]interface{}{1}), hashArgs([]interface{}{"1"}))
}

func TestTableName(t *testing.T) {
	tests := map[string]string{
		"SELECT * FROM users WHERE id = ?":                     "users",
		"select u.id from Users AS u":                          "users",
		"INSERT INTO posts (title) VALUES (?)":                 "posts",
		"UPDATE app.users SET a = 1":                           "app.users",
		"DELETE FROM sessions":                                 "sessions",
		"SELECT COUNT(*) AS total FROM (SELECT 1 FROM t) AS g": "",
		"CREATE TABLE x (id INT)":                              "",
	}
	for sql, want := range tests {
		assert.Equal(t, want, TableName(sql), sql)
	}
}

func TestAuditor_Hook(t *testing.T) {
	a, buf := newTestAuditor(Writes)

	adapter, err := core.NewAdapter("main", config.Connection{
		Type:     config.TypeSQLite,
		Database: filepath.Join(t.TempDir(), "audit.db"),
	}, core.WithQueryHook(a.Hook()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = adapter.Close() })

	ctx := WithUser(context.Background(), "bob")
	_, err = adapter.Execute(ctx, "CREATE TABLE notes (id INTEGER PRIMARY KEY, body TEXT)", nil)
	require.NoError(t, err)
	_, err = adapter.Insert("notes").Add(map[string]interface{}{"body": "secret"}).Execute(ctx)
	require.NoError(t, err)
	_, err = adapter.Select().From("notes", "").Fetch(ctx)
	require.NoError(t, err)

	events := decodeEvents(t, buf)
	require.Len(t, events, 1)
	assert.Equal(t, "INSERT", events[0]["operation"])
	assert.Equal(t, "notes", events[0]["table"])
	assert.Equal(t, "bob", events[0]["user"])
}
