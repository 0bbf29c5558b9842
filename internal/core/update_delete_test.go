package core

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdate_NoAssignments(t *testing.T) {
	u := NewUpdate(nil, "users").Where("id", 1)

	_, _, err := u.ToSQL()
	assert.ErrorIs(t, err, ErrNoAssignments)

	_, err = u.Execute(context.Background())
	assert.ErrorIs(t, err, ErrNoAssignments)
	assert.Contains(t, u.Debug(), "--")
}

// TestUpdate_UniqueKeys sets and filters on the same column; the two
// bindings must not collide.
func TestUpdate_UniqueKeys(t *testing.T) {
	sql, params, err := NewUpdate(nil, "users").
		Set("name", "Alicia").
		Where("name", "Alice").
		ToSQL()

	require.NoError(t, err)
	assert.Equal(t, "UPDATE users SET name = :name WHERE (name = :name_2)", sql)
	assert.Equal(t, Params{"name": "Alicia", "name_2": "Alice"}, params)
}

func TestUpdate_Set(t *testing.T) {
	sql, params, err := NewUpdate(nil, "users").
		Set("status", "banned").
		Set("name", "X").
		Set("status", "active").
		Set("updated_at", NewExp("NOW()")).
		Set("email", nil).
		ToSQL()

	require.NoError(t, err)
	assert.Equal(t,
		"UPDATE users SET status = :status, name = :name, updated_at = NOW(), email = NULL",
		sql)
	assert.Equal(t, Params{"status": "active", "name": "X"}, params)
}

func TestUpdate_SetMap(t *testing.T) {
	sql, _, err := NewUpdate(nil, "users").
		SetMap(map[string]interface{}{"visits": 1, "name": "Y", "email": "y@example.com"}).
		ToSQL()

	require.NoError(t, err)
	assert.Equal(t, "UPDATE users SET email = :email, name = :name, visits = :visits", sql)
}

func TestUpdate_IncrementDecrement(t *testing.T) {
	sql, params, err := NewUpdate(nil, "users").
		Increment("visits", 2).
		Decrement("score", 5).
		Where("id", 3).
		ToSQL()

	require.NoError(t, err)
	assert.Equal(t, "UPDATE users SET visits = visits + 2, score = score - 5 WHERE (id = :id)", sql)
	assert.Equal(t, Params{"id": 3}, params)

	sql, _, _ = NewUpdate(nil, "users").Increment("visits", -4).ToSQL()
	assert.Equal(t, "UPDATE users SET visits = visits - 4", sql)

	sql, _, _ = NewUpdate(nil, "users").Decrement("visits", -4).ToSQL()
	assert.Equal(t, "UPDATE users SET visits = visits + 4", sql)
}

func TestUpdate_StepExtremes(t *testing.T) {
	tests := []struct {
		name   string
		update *Update
		want   string
	}{
		{"increment min", NewUpdate(nil, "t").Increment("n", math.MinInt64), "UPDATE t SET n = n - 9223372036854775808"},
		{"decrement min", NewUpdate(nil, "t").Decrement("n", math.MinInt64), "UPDATE t SET n = n + 9223372036854775808"},
		{"increment max", NewUpdate(nil, "t").Increment("n", math.MaxInt64), "UPDATE t SET n = n + 9223372036854775807"},
		{"decrement max", NewUpdate(nil, "t").Decrement("n", math.MaxInt64), "UPDATE t SET n = n - 9223372036854775807"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, _, err := tt.update.ToSQL()
			require.NoError(t, err)
			assert.Equal(t, tt.want, sql)
		})
	}
}

func TestUpdate_OrderBy(t *testing.T) {
	sql, _, err := NewUpdate(nil, "jobs").
		Set("taken", 1).
		WhereNull("taken_at").
		OrderBy("created_at", "").
		ToSQL()

	require.NoError(t, err)
	assert.Equal(t, "UPDATE jobs SET taken = :taken WHERE (taken_at IS NULL) ORDER BY created_at ASC", sql)

	assert.Panics(t, func() { NewUpdate(nil, "jobs").OrderBy("id", "sideways") })
}

func TestUpdate_Debug(t *testing.T) {
	got := NewUpdate(nil, "users").Set("name", "O'Hara").Where("id", 2).Debug()
	assert.Equal(t, "UPDATE users SET name = 'O''Hara' WHERE (id = 2)", got)
}

func TestUpdate_Execute(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()

	n, err := a.Update("users").Increment("visits", 5).Where("status", "active").Execute(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	row, _, err := a.Select().From("users", "", "visits").Where("name", "Alice").FetchFirstRow(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(15), row["visits"])

	n, err = a.Update("users").Set("status", "gone").Where("id", 999).Execute(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDelete_ToSQL(t *testing.T) {
	sql, params, err := NewDelete(nil, "users").ToSQL()
	require.NoError(t, err)
	assert.Equal(t, "DELETE FROM users", sql)
	assert.Empty(t, params)

	sql, params, err = NewDelete(nil, "users").
		Where("status", "banned").
		OrWhereOp("visits", "<", 1).
		ToSQL()
	require.NoError(t, err)
	assert.Equal(t, "DELETE FROM users WHERE (status = :status) OR (visits < :visits)", sql)
	assert.Equal(t, Params{"status": "banned", "visits": 1}, params)
}

func TestDelete_Execute(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()

	n, err := a.Delete("posts").Where("user_id", 1).Execute(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = a.Delete("posts").Where("user_id", 1).Execute(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = NewDelete(nil, "posts").Execute(ctx)
	assert.ErrorIs(t, err, ErrUnknownConnection)
}
