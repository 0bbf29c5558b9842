package core

import (
	"context"
	"fmt"
	"sort"
)

// Condition selects the rows a Model operation applies to.
type Condition interface {
	apply(m *Model, w *Where)
}

type keyCondition struct{ value interface{} }

func (c keyCondition) apply(m *Model, w *Where) { w.Where(m.primaryKey, c.value) }

// ByKey matches the row whose primary key equals value.
func ByKey(value interface{}) Condition { return keyCondition{value} }

type fieldCondition struct {
	field string
	value interface{}
}

func (c fieldCondition) apply(_ *Model, w *Where) { w.Where(c.field, c.value) }

// By matches rows where field equals value.
func By(field string, value interface{}) Condition { return fieldCondition{field, value} }

// Match ANDs an equality per entry. Expression values render verbatim and
// nil values compare with NULL.
type Match map[string]interface{}

func (c Match) apply(_ *Model, w *Where) {
	fields := make([]string, 0, len(c))
	for f := range c {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	for _, f := range fields {
		w.Where(f, c[f])
	}
}

func (w *Where) apply(_ *Model, target *Where) { target.Match(w) }

type allRows struct{}

func (allRows) apply(*Model, *Where) {}

// AllRows matches every row. Model.Update and Model.Delete require it to
// write the whole table.
var AllRows Condition = allRows{}

// ModelOption configures a Model.
type ModelOption func(*Model)

// WithPrimaryKey sets the primary key column. Defaults to "id".
func WithPrimaryKey(column string) ModelOption {
	return func(m *Model) { m.primaryKey = column }
}

// WithoutAutoIncrement marks the primary key as supplied by the caller.
func WithoutAutoIncrement() ModelOption {
	return func(m *Model) { m.autoIncrement = false }
}

// WithNeverUpdate lists fields that Record.Save never writes.
func WithNeverUpdate(fields ...string) ModelOption {
	return func(m *Model) {
		for _, f := range fields {
			m.neverUpdate[f] = true
		}
	}
}

// WithConnection selects a registry connection other than the default.
func WithConnection(name string) ModelOption {
	return func(m *Model) { m.connection = name }
}

// Model maps one table to Records.
//
//	users := core.NewModel(registry, "users")
//	u, found, err := users.FetchOne(ctx, core.ByKey(5))
//	u.Set("name", "B")
//	_, err = u.Save(ctx) // UPDATE users SET name = ? WHERE (id = ?)
type Model struct {
	registry      *Registry
	connection    string
	table         string
	primaryKey    string
	autoIncrement bool
	neverUpdate   map[string]bool
}

// NewModel returns a model for table using connections from registry.
func NewModel(registry *Registry, table string, opts ...ModelOption) *Model {
	m := &Model{
		registry:      registry,
		table:         table,
		primaryKey:    "id",
		autoIncrement: true,
		neverUpdate:   map[string]bool{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Table returns the table name.
func (m *Model) Table() string { return m.table }

// PrimaryKey returns the primary key column.
func (m *Model) PrimaryKey() string { return m.primaryKey }

// Adapter returns the adapter the model runs on.
func (m *Model) Adapter() (*Adapter, error) {
	return m.registry.Adapter(m.connection)
}

// NewRecord returns an unsaved record holding data.
func (m *Model) NewRecord(data map[string]interface{}) *Record {
	return newRecord(m, data)
}

// Query returns a SELECT on the model's table. Records fetched through it are
// bound to the model.
func (m *Model) Query(fields ...string) (*QueryBuilder, error) {
	a, err := m.Adapter()
	if err != nil {
		return nil, err
	}
	qb := NewQueryBuilder(a).From(m.table, "", fields...)
	qb.model = m
	return qb, nil
}

// ResultSet returns a paginating SELECT on the model's table.
func (m *Model) ResultSet(fields ...string) (*ResultSet, error) {
	qb, err := m.Query(fields...)
	if err != nil {
		return nil, err
	}
	return &ResultSet{QueryBuilder: qb}, nil
}

func (m *Model) query(cond Condition, fields []string) (*QueryBuilder, error) {
	qb, err := m.Query(fields...)
	if err != nil {
		return nil, err
	}
	if cond != nil {
		cond.apply(m, qb.where)
	}
	return qb, nil
}

// Create inserts data and returns it as a loaded record. With an
// auto-increment key the generated value is stored in the record.
func (m *Model) Create(ctx context.Context, data map[string]interface{}) (*Record, error) {
	a, err := m.Adapter()
	if err != nil {
		return nil, err
	}

	ins := NewInsert(a, m.table).Add(data)
	generate := m.autoIncrement && data[m.primaryKey] == nil
	if generate {
		ins.Returning(m.primaryKey)
	}
	res, err := ins.Execute(ctx)
	if err != nil {
		return nil, err
	}

	row := make(Row, len(data)+1)
	for k, v := range data {
		row[k] = v
	}
	if generate {
		row[m.primaryKey] = res.LastInsertID
	}
	return loadedRecord(m, row), nil
}

// restrict applies cond to the WHERE of a write. A condition that adds
// nothing (nil, an empty Match, an empty Where) is rejected with
// ErrUnconditionalWrite unless it is AllRows.
func (m *Model) restrict(op string, cond Condition, w *Where) error {
	if cond != nil {
		cond.apply(m, w)
	}
	if w.Len() > 0 {
		return nil
	}
	if _, all := cond.(allRows); all {
		return nil
	}
	return fmt.Errorf("%s %s: %w", op, m.table, ErrUnconditionalWrite)
}

// Update writes data to the rows matching cond and returns how many changed.
// An empty cond is rejected with ErrUnconditionalWrite; pass AllRows to
// update the whole table.
func (m *Model) Update(ctx context.Context, data map[string]interface{}, cond Condition) (int64, error) {
	a, err := m.Adapter()
	if err != nil {
		return 0, err
	}
	upd := NewUpdate(a, m.table).SetMap(data)
	if err := m.restrict("update", cond, upd.where); err != nil {
		return 0, err
	}
	return upd.Execute(ctx)
}

// Delete removes the rows matching cond. An empty cond is rejected as in Update.
func (m *Model) Delete(ctx context.Context, cond Condition) (int64, error) {
	a, err := m.Adapter()
	if err != nil {
		return 0, err
	}
	del := NewDelete(a, m.table)
	if err := m.restrict("delete", cond, del.where); err != nil {
		return 0, err
	}
	return del.Execute(ctx)
}

// FetchOne returns the first record matching cond. found is false, with a
// nil error, when nothing matched. fields limits the selected columns.
func (m *Model) FetchOne(ctx context.Context, cond Condition, fields ...string) (rec *Record, found bool, err error) {
	qb, err := m.query(cond, fields)
	if err != nil {
		return nil, false, err
	}
	return qb.FetchFirst(ctx)
}

// FetchAssoc returns the matching rows as maps. A nil cond matches every row.
func (m *Model) FetchAssoc(ctx context.Context, cond Condition, fields ...string) ([]Row, error) {
	qb, err := m.query(cond, fields)
	if err != nil {
		return nil, err
	}
	return qb.Fetch(ctx)
}

// FetchRecords returns the matching rows as records.
func (m *Model) FetchRecords(ctx context.Context, cond Condition, fields ...string) ([]*Record, error) {
	qb, err := m.query(cond, fields)
	if err != nil {
		return nil, err
	}
	return qb.FetchRecords(ctx)
}

// FetchKeyed returns the matching records keyed by the value of keyField.
// A later row with the same key replaces an earlier one.
func (m *Model) FetchKeyed(ctx context.Context, cond Condition, keyField string, fields ...string) (map[interface{}]*Record, error) {
	records, err := m.FetchRecords(ctx, cond, fields...)
	if err != nil {
		return nil, err
	}
	out := make(map[interface{}]*Record, len(records))
	for _, r := range records {
		key, err := r.Get(keyField)
		if err != nil {
			return nil, err
		}
		out[key] = r
	}
	return out, nil
}

// Count returns how many rows match cond.
func (m *Model) Count(ctx context.Context, cond Condition) (int64, error) {
	rs, err := m.ResultSet()
	if err != nil {
		return 0, err
	}
	if cond != nil {
		cond.apply(m, rs.where)
	}
	return rs.Count(ctx)
}

// IsUnique reports whether no row has field equal to value.
func (m *Model) IsUnique(ctx context.Context, field string, value interface{}) (bool, error) {
	return m.IsUniqueExcept(ctx, field, value, "", nil)
}

// IsUniqueExcept reports whether no row other than the one where
// exceptField equals exceptValue has field equal to value. An empty
// exceptField means field itself; a nil exceptValue excludes nothing.
//
//	// is the new email free, ignoring the user being edited?
//	ok, err := users.IsUniqueExcept(ctx, "email", newEmail, "id", userID)
func (m *Model) IsUniqueExcept(ctx context.Context, field string, value interface{}, exceptField string, exceptValue interface{}) (bool, error) {
	w := NewWhere().Where(field, value)
	if exceptValue != nil {
		if exceptField == "" {
			exceptField = field
		}
		w.WhereOp(exceptField, "!=", exceptValue)
	}
	n, err := m.Count(ctx, w)
	if err != nil {
		return false, err
	}
	return n == 0, nil
}

// Increment adds amount to field on the rows matching cond. The sign of
// amount chooses between + and -.
func (m *Model) Increment(ctx context.Context, field string, cond Condition, amount int64) (int64, error) {
	return m.step(ctx, field, cond, func(u *Update) *Update { return u.Increment(field, amount) })
}

// Decrement subtracts amount from field on the rows matching cond.
func (m *Model) Decrement(ctx context.Context, field string, cond Condition, amount int64) (int64, error) {
	return m.step(ctx, field, cond, func(u *Update) *Update { return u.Decrement(field, amount) })
}

func (m *Model) step(ctx context.Context, field string, cond Condition, set func(*Update) *Update) (int64, error) {
	a, err := m.Adapter()
	if err != nil {
		return 0, err
	}
	upd := set(NewUpdate(a, m.table))
	if err := m.restrict("increment "+field+" on", cond, upd.where); err != nil {
		return 0, err
	}
	return upd.Execute(ctx)
}
