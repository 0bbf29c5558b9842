package core

import "context"

// Delete builds "DELETE FROM table [WHERE ...]". Without conditions every
// row is deleted.
type Delete struct {
	filter[*Delete]

	adapter *Adapter
	table   string
}

// NewDelete returns a DELETE from table executing on adapter.
func NewDelete(adapter *Adapter, table string) *Delete {
	d := &Delete{adapter: adapter, table: table}
	d.filter = newFilter(d)
	return d
}

// ToSQL renders the statement with :name placeholders and its bindings.
func (d *Delete) ToSQL() (string, Params, error) {
	return renderNamed(d.render)
}

func (d *Delete) render(b *bindings) (string, error) {
	return "DELETE FROM " + d.table + d.renderWhere(b), nil
}

// Execute runs the delete and returns the number of removed rows.
func (d *Delete) Execute(ctx context.Context) (int64, error) {
	res, err := runRendered(ctx, d.adapter, d.render, ErrUnknownConnection)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected, nil
}
