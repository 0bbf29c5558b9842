package core

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/vkoudela/koldy/internal/dialects"
)

// Row is one result row keyed by column name. Text columns returned by the
// driver as []byte are converted to string.
type Row map[string]interface{}

type selectField struct {
	expr  string
	alias string
}

type joinClause struct {
	kind  string
	table string
	alias string
	on    string
}

type orderClause struct {
	field     string
	direction string
}

type limitClause struct {
	offset int
	count  int
}

// QueryBuilder assembles a SELECT statement. Every call to ToSQL (and so every
// fetch) renders the statement and its bindings from scratch, so a builder can
// be fetched, modified and fetched again.
//
// A QueryBuilder is not safe for concurrent use.
type QueryBuilder struct {
	filter[*QueryBuilder]

	adapter *Adapter
	model   *Model

	table   string
	derived *QueryBuilder
	alias   string
	fields  []selectField
	aliases map[string]string
	joins   []joinClause
	groupBy []string
	orderBy []orderClause
	limit   *limitClause
}

// NewQueryBuilder returns an empty builder executing on adapter. A nil
// adapter still renders SQL, in the MySQL dialect.
func NewQueryBuilder(adapter *Adapter) *QueryBuilder {
	qb := &QueryBuilder{adapter: adapter, aliases: map[string]string{}}
	qb.filter = newFilter(qb)
	return qb
}

func dialectOf(a *Adapter) dialects.Dialect {
	if a != nil {
		return a.dialect
	}
	return dialects.GetDialect("mysql")
}

// qualify prefixes a bare column with table. Already qualified names,
// "*" and function calls are returned unchanged.
func qualify(table, name string) string {
	if table == "" || strings.ContainsAny(name, ".()") || strings.Contains(name, " ") {
		return name
	}
	return table + "." + name
}

// From sets the table to select from. Fields are qualified with alias, or
// with table when alias is empty.
func (qb *QueryBuilder) From(table, alias string, fields ...string) *QueryBuilder {
	qb.table = table
	qb.alias = alias
	ref := alias
	if ref == "" {
		ref = table
	}
	for _, f := range fields {
		qb.addField(qualify(ref, f), "")
	}
	return qb
}

// Table returns the FROM table.
func (qb *QueryBuilder) Table() string {
	return qb.table
}

// InnerJoin adds "INNER JOIN table [AS alias] ON on". The on condition is
// used verbatim. Fields are added to the selection qualified with the alias.
func (qb *QueryBuilder) InnerJoin(table, alias, on string, fields ...string) *QueryBuilder {
	return qb.join("INNER JOIN", table, alias, on, fields)
}

// LeftJoin adds "LEFT JOIN table [AS alias] ON on".
func (qb *QueryBuilder) LeftJoin(table, alias, on string, fields ...string) *QueryBuilder {
	return qb.join("LEFT JOIN", table, alias, on, fields)
}

func (qb *QueryBuilder) join(kind, table, alias, on string, fields []string) *QueryBuilder {
	qb.joins = append(qb.joins, joinClause{kind: kind, table: table, alias: alias, on: on})
	ref := alias
	if ref == "" {
		ref = table
	}
	for _, f := range fields {
		qb.addField(qualify(ref, f), "")
	}
	return qb
}

// Field adds one column to the selection. name may be qualified ("u.email")
// or an expression ("COUNT(*)"); alias may be empty.
func (qb *QueryBuilder) Field(name, alias string) *QueryBuilder {
	qb.addField(name, alias)
	return qb
}

// Fields adds columns qualified with table, which may be empty.
func (qb *QueryBuilder) Fields(table string, names ...string) *QueryBuilder {
	for _, n := range names {
		qb.addField(qualify(table, n), "")
	}
	return qb
}

// FieldsAs adds columns qualified with table, keyed by column with the alias
// as value. Columns are added in name order.
func (qb *QueryBuilder) FieldsAs(table string, fields map[string]string) *QueryBuilder {
	names := make([]string, 0, len(fields))
	for n := range fields {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		qb.addField(qualify(table, n), fields[n])
	}
	return qb
}

// addField records expr in the selection and in the alias map, under both its
// alias and its bare column name, so ORDER BY and GROUP BY can refer to it.
func (qb *QueryBuilder) addField(expr, alias string) {
	qb.fields = append(qb.fields, selectField{expr: expr, alias: alias})
	if alias != "" {
		qb.aliases[alias] = expr
	}
	if i := strings.LastIndexByte(expr, '.'); i >= 0 && !strings.ContainsAny(expr, "() ") {
		bare := expr[i+1:]
		if _, ok := qb.aliases[bare]; !ok && bare != "*" {
			qb.aliases[bare] = expr
		}
	}
}

// resolve maps an alias or bare name to the column recorded for it.
func (qb *QueryBuilder) resolve(name string) string {
	if ref, ok := qb.aliases[name]; ok {
		return ref
	}
	return name
}

// GroupBy adds GROUP BY columns.
func (qb *QueryBuilder) GroupBy(fields ...string) *QueryBuilder {
	qb.groupBy = append(qb.groupBy, fields...)
	return qb
}

// OrderBy adds an ORDER BY column. direction is ASC or DESC in any case, and
// defaults to ASC when empty. Any other direction panics.
func (qb *QueryBuilder) OrderBy(field, direction string) *QueryBuilder {
	qb.orderBy = append(qb.orderBy, orderClause{field: field, direction: normalizeDirection(direction)})
	return qb
}

func normalizeDirection(direction string) string {
	dir := strings.ToUpper(strings.TrimSpace(direction))
	switch dir {
	case "":
		return "ASC"
	case "ASC", "DESC":
		return dir
	}
	panic(fmt.Sprintf("koldy: invalid ORDER BY direction %q", direction))
}

// Limit sets the offset and maximum row count.
func (qb *QueryBuilder) Limit(offset, count int) *QueryBuilder {
	if offset < 0 {
		offset = 0
	}
	qb.limit = &limitClause{offset: offset, count: count}
	return qb
}

// ResetFields clears the selection and the alias map.
func (qb *QueryBuilder) ResetFields() *QueryBuilder {
	qb.fields = nil
	qb.aliases = map[string]string{}
	return qb
}

// ResetGroupBy clears GROUP BY.
func (qb *QueryBuilder) ResetGroupBy() *QueryBuilder {
	qb.groupBy = nil
	return qb
}

// ResetOrderBy clears ORDER BY.
func (qb *QueryBuilder) ResetOrderBy() *QueryBuilder {
	qb.orderBy = nil
	return qb
}

// ResetLimit removes the limit.
func (qb *QueryBuilder) ResetLimit() *QueryBuilder {
	qb.limit = nil
	return qb
}

// Clone returns an independent copy of the builder state.
func (qb *QueryBuilder) Clone() *QueryBuilder {
	c := &QueryBuilder{
		adapter: qb.adapter,
		model:   qb.model,
		table:   qb.table,
		alias:   qb.alias,
		fields:  append([]selectField(nil), qb.fields...),
		aliases: make(map[string]string, len(qb.aliases)),
		joins:   append([]joinClause(nil), qb.joins...),
		groupBy: append([]string(nil), qb.groupBy...),
		orderBy: append([]orderClause(nil), qb.orderBy...),
	}
	for k, v := range qb.aliases {
		c.aliases[k] = v
	}
	if qb.limit != nil {
		l := *qb.limit
		c.limit = &l
	}
	if qb.derived != nil {
		c.derived = qb.derived.Clone()
	}
	c.filter = filter[*QueryBuilder]{where: qb.where.Clone(), self: c}
	return c
}

// ToSQL renders the statement with :name placeholders and its bindings.
func (qb *QueryBuilder) ToSQL() (string, Params, error) {
	return renderNamed(qb.render)
}

func (qb *QueryBuilder) render(b *bindings) (string, error) {
	if qb.table == "" && qb.derived == nil {
		return "", ErrMissingFrom
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	if len(qb.fields) == 0 {
		sb.WriteString("*")
	} else {
		for i, f := range qb.fields {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(f.expr)
			if f.alias != "" {
				sb.WriteString(" AS " + f.alias)
			}
		}
	}

	sb.WriteString(" FROM ")
	if qb.derived != nil {
		inner, err := qb.derived.render(b)
		if err != nil {
			return "", err
		}
		sb.WriteString("(" + inner + ")")
	} else {
		sb.WriteString(qb.table)
	}
	if qb.alias != "" {
		sb.WriteString(" AS " + qb.alias)
	}

	for _, j := range qb.joins {
		sb.WriteString(" " + j.kind + " " + j.table)
		if j.alias != "" {
			sb.WriteString(" AS " + j.alias)
		}
		sb.WriteString(" ON " + j.on)
	}

	sb.WriteString(qb.renderWhere(b))

	if len(qb.groupBy) > 0 {
		cols := make([]string, len(qb.groupBy))
		for i, g := range qb.groupBy {
			cols[i] = qb.resolve(g)
		}
		sb.WriteString(" GROUP BY " + strings.Join(cols, ", "))
	}

	sb.WriteString(renderOrderBy(qb.orderBy, qb.resolve))

	if qb.limit != nil {
		sb.WriteString(dialectOf(qb.adapter).Limit(qb.limit.offset, qb.limit.count))
	}

	return sb.String(), nil
}

func renderOrderBy(orders []orderClause, resolve func(string) string) string {
	if len(orders) == 0 {
		return ""
	}
	cols := make([]string, len(orders))
	for i, o := range orders {
		cols[i] = resolve(o.field) + " " + o.direction
	}
	return " ORDER BY " + strings.Join(cols, ", ")
}

// Debug returns the statement with bindings inlined, for logs only.
func (qb *QueryBuilder) Debug() string {
	sql, params, err := qb.ToSQL()
	if err != nil {
		return "-- " + err.Error()
	}
	return Interpolate(sql, params)
}

func (qb *QueryBuilder) execute(ctx context.Context) (*Result, error) {
	return runRendered(ctx, qb.adapter, qb.render, fmt.Errorf("query on %s: %w", qb.table, ErrUnknownConnection))
}

// Fetch runs the query and returns every row.
func (qb *QueryBuilder) Fetch(ctx context.Context) ([]Row, error) {
	res, err := qb.execute(ctx)
	if err != nil {
		return nil, err
	}
	return res.Rows, nil
}

// FetchRecords runs the query and wraps each row in a Record. Records are
// bound to the model when the builder came from one.
func (qb *QueryBuilder) FetchRecords(ctx context.Context) ([]*Record, error) {
	rows, err := qb.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	records := make([]*Record, len(rows))
	for i, row := range rows {
		records[i] = loadedRecord(qb.model, row)
	}
	return records, nil
}

// FetchFirstRow returns the first row. found is false when nothing matched.
// A LIMIT of one row is applied unless the builder already has a limit.
func (qb *QueryBuilder) FetchFirstRow(ctx context.Context) (row Row, found bool, err error) {
	q := qb
	if qb.limit == nil {
		q = qb.Clone().Limit(0, 1)
	}
	rows, err := q.Fetch(ctx)
	if err != nil || len(rows) == 0 {
		return nil, false, err
	}
	return rows[0], true, nil
}

// FetchFirst is FetchFirstRow returning a Record.
func (qb *QueryBuilder) FetchFirst(ctx context.Context) (*Record, bool, error) {
	row, found, err := qb.FetchFirstRow(ctx)
	if !found {
		return nil, false, err
	}
	return loadedRecord(qb.model, row), true, nil
}

// FetchInto decodes every row into dest, a pointer to a slice of structs or
// struct pointers. Columns map to fields through the db tag.
func (qb *QueryBuilder) FetchInto(ctx context.Context, dest interface{}) error {
	rows, err := qb.Fetch(ctx)
	if err != nil {
		return err
	}
	return decodeRows(rows, dest)
}
