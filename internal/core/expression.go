package core

// Expression is a fragment of SQL that is rendered verbatim. It is never
// bound as a parameter and never escaped, so it must not carry user input.
//
//	upd.Set("visits", core.NewExp("visits + 1"))
//	q.Where("created_at", core.NewExp("NOW()"))
type Expression struct {
	sql string
}

// NewExp wraps sql as an Expression.
func NewExp(sql string) Expression {
	return Expression{sql: sql}
}

// Null is the SQL NULL literal. A nil value anywhere a value is accepted
// is rendered as Null.
var Null = NewExp("NULL")

// String returns the SQL fragment.
func (e Expression) String() string {
	return e.sql
}

// rawSQL returns the verbatim rendering of v when v must not be bound.
func rawSQL(v interface{}) (string, bool) {
	switch x := v.(type) {
	case nil:
		return Null.sql, true
	case Expression:
		return x.sql, true
	case *Expression:
		if x == nil {
			return Null.sql, true
		}
		return x.sql, true
	}
	return "", false
}
