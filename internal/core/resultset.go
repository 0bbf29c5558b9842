package core

import (
	"context"
	"fmt"
	"strconv"
)

// ResultSet is a QueryBuilder with pagination and a matching COUNT query.
// Builder methods return the embedded *QueryBuilder, which shares state with
// the ResultSet:
//
//	rs := adapter.ResultSet()
//	rs.From("users", "u").Where("u.status", "active").OrderBy("u.name", "ASC")
//	rs.Page(2, 25)
//	rows, err := rs.Fetch(ctx)
//	total, err := rs.Count(ctx)
type ResultSet struct {
	*QueryBuilder
	countQuery *QueryBuilder
}

// NewResultSet returns an empty result set executing on adapter.
func NewResultSet(adapter *Adapter) *ResultSet {
	return &ResultSet{QueryBuilder: NewQueryBuilder(adapter)}
}

// Page limits the query to one 1-based page. Page numbers below 1 select
// the first page.
func (rs *ResultSet) Page(number, perPage int) *ResultSet {
	if number < 1 {
		number = 1
	}
	rs.Limit((number-1)*perPage, perPage)
	return rs
}

// CountQuery replaces the derived count query. q must return the count in a
// column named total, or as its only column.
func (rs *ResultSet) CountQuery(q *QueryBuilder) *ResultSet {
	rs.countQuery = q
	return rs
}

// Clone copies the result set, including any explicit count query.
func (rs *ResultSet) Clone() *ResultSet {
	c := &ResultSet{QueryBuilder: rs.QueryBuilder.Clone()}
	if rs.countQuery != nil {
		c.countQuery = rs.countQuery.Clone()
	}
	return c
}

// CountBuilder returns the query Count runs. Unless an explicit count query
// was set, it is a copy of the result set with the selection, ORDER BY and
// LIMIT removed and COUNT(*) AS total selected. FROM, joins, WHERE and
// GROUP BY are kept; a grouped query is counted through a derived table.
func (rs *ResultSet) CountBuilder() *QueryBuilder {
	if rs.countQuery != nil {
		return rs.countQuery
	}

	q := rs.QueryBuilder.Clone()
	aliases := q.aliases
	q.ResetFields().ResetOrderBy().ResetLimit()
	q.aliases = aliases
	if len(q.groupBy) == 0 {
		return q.Field("COUNT(*)", "total")
	}

	q.Field("1", "")
	outer := NewQueryBuilder(rs.adapter).Field("COUNT(*)", "total")
	outer.derived = q
	outer.alias = "grouped"
	return outer
}

// Count returns the number of rows the unpaginated query matches, or 0 if
// the count query returned no row.
func (rs *ResultSet) Count(ctx context.Context) (int64, error) {
	rows, err := rs.CountBuilder().Fetch(ctx)
	if err != nil || len(rows) == 0 {
		return 0, err
	}

	row := rows[0]
	v, ok := row["total"]
	if !ok && len(row) == 1 {
		for _, only := range row {
			v, ok = only, true
		}
	}
	if !ok {
		return 0, fmt.Errorf("count: no total column in %v", row)
	}
	return toInt64(v)
}

func toInt64(v interface{}) (int64, error) {
	switch n := v.(type) {
	case nil:
		return 0, nil
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case uint64:
		return int64(n), nil
	case float64:
		return int64(n), nil
	case []byte:
		return toInt64(string(n))
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("count: %w", err)
		}
		return i, nil
	}
	return 0, fmt.Errorf("count: unexpected value %T", v)
}
