package core

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

type assignment struct {
	field string
	value interface{}
}

// Update builds "UPDATE table SET ... [WHERE ...] [ORDER BY ...]". Without
// conditions every row is updated.
type Update struct {
	filter[*Update]

	adapter *Adapter
	table   string
	sets    []assignment
	orderBy []orderClause
}

// NewUpdate returns an UPDATE of table executing on adapter.
func NewUpdate(adapter *Adapter, table string) *Update {
	u := &Update{adapter: adapter, table: table}
	u.filter = newFilter(u)
	return u
}

// Set assigns value to field. Setting a field twice keeps the last value in
// the position of the first call.
func (u *Update) Set(field string, value interface{}) *Update {
	for i := range u.sets {
		if u.sets[i].field == field {
			u.sets[i].value = value
			return u
		}
	}
	u.sets = append(u.sets, assignment{field: field, value: value})
	return u
}

// SetMap assigns every entry of values, in field name order.
func (u *Update) SetMap(values map[string]interface{}) *Update {
	fields := make([]string, 0, len(values))
	for f := range values {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	for _, f := range fields {
		u.Set(f, values[f])
	}
	return u
}

// Increment sets "field = field + amount". A negative amount decrements.
func (u *Update) Increment(field string, amount int64) *Update {
	return u.Set(field, stepExpression(field, amount, false))
}

// Decrement sets "field = field - amount". A negative amount increments.
func (u *Update) Decrement(field string, amount int64) *Update {
	return u.Set(field, stepExpression(field, amount, true))
}

func stepExpression(field string, amount int64, subtract bool) Expression {
	// magnitude of math.MinInt64 does not fit in an int64
	magnitude := uint64(amount)
	if amount < 0 {
		subtract = !subtract
		magnitude = uint64(-(amount + 1)) + 1
	}
	op := "+"
	if subtract {
		op = "-"
	}
	return NewExp(field + " " + op + " " + strconv.FormatUint(magnitude, 10))
}

// OrderBy adds an ORDER BY column; see QueryBuilder.OrderBy.
func (u *Update) OrderBy(field, direction string) *Update {
	u.orderBy = append(u.orderBy, orderClause{field: field, direction: normalizeDirection(direction)})
	return u
}

// ToSQL renders the statement. It fails with ErrNoAssignments before
// rendering anything when Set was never called.
func (u *Update) ToSQL() (string, Params, error) {
	return renderNamed(u.render)
}

func (u *Update) render(b *bindings) (string, error) {
	if len(u.sets) == 0 {
		return "", fmt.Errorf("update %s: %w", u.table, ErrNoAssignments)
	}

	parts := make([]string, len(u.sets))
	for i, s := range u.sets {
		parts[i] = s.field + " = " + b.placeholder(s.field, s.value)
	}

	sql := "UPDATE " + u.table + " SET " + strings.Join(parts, ", ") +
		u.renderWhere(b) +
		renderOrderBy(u.orderBy, func(s string) string { return s })
	return sql, nil
}

// Debug returns the statement with bindings inlined, for logs only.
func (u *Update) Debug() string {
	sql, params, err := u.ToSQL()
	if err != nil {
		return "-- " + err.Error()
	}
	return Interpolate(sql, params)
}

// Execute runs the update and returns the number of affected rows, which
// may be 0.
func (u *Update) Execute(ctx context.Context) (int64, error) {
	res, err := runRendered(ctx, u.adapter, u.render, ErrUnknownConnection)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected, nil
}
