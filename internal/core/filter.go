package core

// filter gives a builder the Where methods while keeping the builder's own
// type in the return value, so calls chain naturally.
type filter[B any] struct {
	where *Where
	self  B
}

func newFilter[B any](self B) filter[B] {
	return filter[B]{where: &Where{}, self: self}
}

// Conditions returns the builder's condition set for direct manipulation.
func (f *filter[B]) Conditions() *Where { return f.where }

func (f *filter[B]) Where(field string, value interface{}) B {
	f.where.Where(field, value)
	return f.self
}

func (f *filter[B]) OrWhere(field string, value interface{}) B {
	f.where.OrWhere(field, value)
	return f.self
}

func (f *filter[B]) WhereOp(field, op string, value interface{}) B {
	f.where.WhereOp(field, op, value)
	return f.self
}

func (f *filter[B]) OrWhereOp(field, op string, value interface{}) B {
	f.where.OrWhereOp(field, op, value)
	return f.self
}

func (f *filter[B]) WhereIn(field string, values ...interface{}) B {
	f.where.WhereIn(field, values...)
	return f.self
}

func (f *filter[B]) OrWhereIn(field string, values ...interface{}) B {
	f.where.OrWhereIn(field, values...)
	return f.self
}

func (f *filter[B]) WhereNotIn(field string, values ...interface{}) B {
	f.where.WhereNotIn(field, values...)
	return f.self
}

func (f *filter[B]) OrWhereNotIn(field string, values ...interface{}) B {
	f.where.OrWhereNotIn(field, values...)
	return f.self
}

func (f *filter[B]) WhereBetween(field string, from, to interface{}) B {
	f.where.WhereBetween(field, from, to)
	return f.self
}

func (f *filter[B]) OrWhereBetween(field string, from, to interface{}) B {
	f.where.OrWhereBetween(field, from, to)
	return f.self
}

func (f *filter[B]) WhereNotBetween(field string, from, to interface{}) B {
	f.where.WhereNotBetween(field, from, to)
	return f.self
}

func (f *filter[B]) OrWhereNotBetween(field string, from, to interface{}) B {
	f.where.OrWhereNotBetween(field, from, to)
	return f.self
}

func (f *filter[B]) WhereNull(field string) B {
	f.where.WhereNull(field)
	return f.self
}

func (f *filter[B]) OrWhereNull(field string) B {
	f.where.OrWhereNull(field)
	return f.self
}

func (f *filter[B]) WhereNotNull(field string) B {
	f.where.WhereNotNull(field)
	return f.self
}

func (f *filter[B]) OrWhereNotNull(field string) B {
	f.where.OrWhereNotNull(field)
	return f.self
}

func (f *filter[B]) WhereLike(field string, pattern interface{}) B {
	f.where.WhereLike(field, pattern)
	return f.self
}

func (f *filter[B]) OrWhereLike(field string, pattern interface{}) B {
	f.where.OrWhereLike(field, pattern)
	return f.self
}

func (f *filter[B]) WhereNotLike(field string, pattern interface{}) B {
	f.where.WhereNotLike(field, pattern)
	return f.self
}

func (f *filter[B]) OrWhereNotLike(field string, pattern interface{}) B {
	f.where.OrWhereNotLike(field, pattern)
	return f.self
}

func (f *filter[B]) WhereGroup(fn func(*Where)) B {
	f.where.WhereGroup(fn)
	return f.self
}

func (f *filter[B]) OrWhereGroup(fn func(*Where)) B {
	f.where.OrWhereGroup(fn)
	return f.self
}

func (f *filter[B]) WhereRaw(exp Expression) B {
	f.where.WhereRaw(exp)
	return f.self
}

func (f *filter[B]) OrWhereRaw(exp Expression) B {
	f.where.OrWhereRaw(exp)
	return f.self
}

// Match ANDs a prebuilt condition set onto the builder.
func (f *filter[B]) Match(w *Where) B {
	f.where.Match(w)
	return f.self
}

// ResetWhere removes every condition.
func (f *filter[B]) ResetWhere() B {
	f.where.Reset()
	return f.self
}

// renderWhere returns " WHERE ..." or "".
func (f *filter[B]) renderWhere(b *bindings) string {
	if cond := f.where.render(b); cond != "" {
		return " WHERE " + cond
	}
	return ""
}
