package core

import (
	"context"
	"sort"
	"strings"
)

// Insert builds a single- or multi-row INSERT. The column list is the sorted
// union of every added row; a row missing a column inserts NULL there.
type Insert struct {
	adapter   *Adapter
	table     string
	rows      []map[string]interface{}
	returning string
}

// NewInsert returns an INSERT into table executing on adapter.
func NewInsert(adapter *Adapter, table string) *Insert {
	return &Insert{adapter: adapter, table: table}
}

// Add appends a row. Expression and nil values are rendered verbatim.
func (ins *Insert) Add(row map[string]interface{}) *Insert {
	ins.rows = append(ins.rows, row)
	return ins
}

// Returning asks dialects that support it to return column from the
// inserted rows. Other dialects ignore it.
func (ins *Insert) Returning(column string) *Insert {
	ins.returning = column
	return ins
}

func (ins *Insert) columns() []string {
	seen := map[string]bool{}
	var cols []string
	for _, row := range ins.rows {
		for c := range row {
			if !seen[c] {
				seen[c] = true
				cols = append(cols, c)
			}
		}
	}
	sort.Strings(cols)
	return cols
}

// ToSQL renders the statement with :name placeholders and its bindings.
func (ins *Insert) ToSQL() (string, Params, error) {
	return renderNamed(ins.render)
}

func (ins *Insert) render(b *bindings) (string, error) {
	cols := ins.columns()
	if len(cols) == 0 {
		return "", ErrEmptyInsert
	}

	tuples := make([]string, len(ins.rows))
	for i, row := range ins.rows {
		values := make([]string, len(cols))
		for j, c := range cols {
			values[j] = b.placeholder(c, row[c])
		}
		tuples[i] = "(" + strings.Join(values, ", ") + ")"
	}

	sql := "INSERT INTO " + ins.table +
		" (" + strings.Join(cols, ", ") + ") VALUES " + strings.Join(tuples, ", ") +
		dialectOf(ins.adapter).Returning(ins.returning)
	return sql, nil
}

// Execute runs the statement. On success the result carries the generated
// key when the driver or a RETURNING clause reported one.
func (ins *Insert) Execute(ctx context.Context) (*Result, error) {
	return runRendered(ctx, ins.adapter, ins.render, ErrUnknownConnection)
}
