package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vkoudela/koldy/internal/dialects"
)

func TestCompile(t *testing.T) {
	mysql := dialects.GetDialect("mysql")
	pg := dialects.GetDialect("postgres")

	tests := []struct {
		name     string
		sql      string
		params   Params
		dialect  dialects.Dialect
		wantSQL  string
		wantArgs []interface{}
	}{
		{
			name:     "mysql",
			sql:      "SELECT * FROM users WHERE id = :id AND name = :name",
			params:   Params{"id": 1, "name": "Alice"},
			dialect:  mysql,
			wantSQL:  "SELECT * FROM users WHERE id = ? AND name = ?",
			wantArgs: []interface{}{1, "Alice"},
		},
		{
			name:     "postgres",
			sql:      "SELECT * FROM users WHERE id = :id AND name = :name",
			params:   Params{"id": 1, "name": "Alice"},
			dialect:  pg,
			wantSQL:  "SELECT * FROM users WHERE id = $1 AND name = $2",
			wantArgs: []interface{}{1, "Alice"},
		},
		{
			name:     "repeated name is bound twice",
			sql:      "SELECT * FROM t WHERE a = :v OR b = :v",
			params:   Params{"v": 5},
			dialect:  pg,
			wantSQL:  "SELECT * FROM t WHERE a = $1 OR b = $2",
			wantArgs: []interface{}{5, 5},
		},
		{
			name:     "cast is not a placeholder",
			sql:      "SELECT created_at::date FROM t WHERE id = :id",
			params:   Params{"id": 2, "date": "x"},
			dialect:  pg,
			wantSQL:  "SELECT created_at::date FROM t WHERE id = $1",
			wantArgs: []interface{}{2},
		},
		{
			name:     "unknown names are left alone",
			sql:      "SELECT '10:30' AS t, :other FROM x WHERE id = :id",
			params:   Params{"id": 3},
			dialect:  mysql,
			wantSQL:  "SELECT '10:30' AS t, :other FROM x WHERE id = ?",
			wantArgs: []interface{}{3},
		},
		{
			name:     "quoted literals are not placeholders",
			sql:      "SELECT * FROM users WHERE (status = :status) AND (name = 'x:status' OR note = 'it''s :status' OR \"x:status\" = `:status`)",
			params:   Params{"status": "active"},
			dialect:  pg,
			wantSQL:  "SELECT * FROM users WHERE (status = $1) AND (name = 'x:status' OR note = 'it''s :status' OR \"x:status\" = `:status`)",
			wantArgs: []interface{}{"active"},
		},
		{
			name:     "escaped quote stays in the literal",
			sql:      `SELECT 'a\' :id' AS s, :id AS n`,
			params:   Params{"id": 1},
			dialect:  mysql,
			wantSQL:  `SELECT 'a\' :id' AS s, ? AS n`,
			wantArgs: []interface{}{1},
		},
		{
			name:    "no params",
			sql:     "SELECT :id",
			dialect: mysql,
			wantSQL: "SELECT :id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args := compile(tt.sql, tt.params, tt.dialect)
			assert.Equal(t, tt.wantSQL, sql)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestBindingName(t *testing.T) {
	tests := map[string]string{
		"name":         "name",
		"u.created_at": "u_created_at",
		"COUNT(*)":     "COUNT",
		"1":            "p_1",
		"":             "p",
		"a..b":         "a_b",
	}
	for in, want := range tests {
		assert.Equal(t, want, bindingName(in), in)
	}
}

func TestInterpolate(t *testing.T) {
	got := Interpolate(
		"SELECT * FROM users WHERE name = :name AND id > :id AND note IS :note AND x = :missing",
		Params{"name": "O'Brien", "id": 5, "note": nil},
	)
	assert.Equal(t, "SELECT * FROM users WHERE name = 'O''Brien' AND id > 5 AND note IS NULL AND x = :missing", got)

	got = Interpolate("SELECT * FROM t WHERE a = :a AND b = ':a'", Params{"a": 1})
	assert.Equal(t, "SELECT * FROM t WHERE a = 1 AND b = ':a'", got)
}

func TestPositionalBindings(t *testing.T) {
	qb := NewQueryBuilder(nil).
		From("users", "").
		Where("status", "active").
		WhereRaw(NewExp("note = :status")).
		WhereIn("id", 1, 2)

	b := positionalBindings(dialects.GetDialect("postgres"))
	sql, err := qb.render(b)
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM users WHERE (status = $1) AND (note = :status) AND (id IN ($2, $3))", sql)
	assert.Equal(t, []interface{}{"active", 1, 2}, b.args)

	named, params, err := qb.ToSQL()
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM users WHERE (status = :status) AND (note = :status) AND (id IN (:id, :id_2))", named)
	assert.Equal(t, Params{"status": "active", "id": 1, "id_2": 2}, params)
}

func TestQuotedRegions(t *testing.T) {
	sql := "a 'b''c' \"d\" `e` 'open"
	assert.Equal(t, [][2]int{{2, 8}, {9, 12}, {13, 16}, {17, 22}}, quotedRegions(sql))
	assert.Nil(t, quotedRegions("SELECT 1"))
}

func TestLiteral(t *testing.T) {
	seven := 7
	var nilPtr *int

	tests := []struct {
		in   interface{}
		want string
	}{
		{nil, "NULL"},
		{true, "1"},
		{false, "0"},
		{42, "42"},
		{int8(-3), "-3"},
		{uint16(9), "9"},
		{1.5, "1.5"},
		{"12.50", "12.50"},
		{"abc", "'abc'"},
		{" 12", "' 12'"},
		{"0x1F", "'0x1F'"},
		{"NaN", "'NaN'"},
		{`a\b`, `'a\\b'`},
		{[]byte("hi"), "'hi'"},
		{time.Date(2024, 3, 9, 8, 7, 6, 0, time.UTC), "'2024-03-09 08:07:06'"},
		{NewExp("NOW()"), "NOW()"},
		{&seven, "7"},
		{nilPtr, "NULL"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Literal(tt.in), "%#v", tt.in)
	}
}

func TestInterpolateArgs(t *testing.T) {
	assert.Equal(t,
		"SELECT * FROM t WHERE a = 1 AND b = 'x'",
		interpolateArgs("SELECT * FROM t WHERE a = ? AND b = ?", []interface{}{1, "x"}))

	assert.Equal(t,
		"SELECT * FROM t WHERE b = 'x' AND a = 1",
		interpolateArgs("SELECT * FROM t WHERE b = $2 AND a = $1", []interface{}{1, "x"}))

	assert.Equal(t,
		"SELECT ? , ?",
		interpolateArgs("SELECT ? , ?", nil))

	assert.Equal(t,
		"SELECT 1, ?",
		interpolateArgs("SELECT ?, ?", []interface{}{1}))
}
