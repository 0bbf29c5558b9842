package core

import (
	"fmt"
	"strings"
)

const (
	linkAnd = "AND"
	linkOr  = "OR"
)

var validOperators = map[string]bool{
	"=": true, "!=": true, "<>": true,
	"<": true, "<=": true, ">": true, ">=": true,
	"LIKE": true, "NOT LIKE": true,
	"REGEXP": true, "NOT REGEXP": true,
}

type clauseKind int

const (
	clauseCompare clauseKind = iota
	clauseIn
	clauseBetween
	clauseNull
	clauseRaw
	clauseGroup
)

type clause struct {
	link   string
	kind   clauseKind
	field  string
	op     string
	values []interface{}
	negate bool
	group  *Where
	raw    Expression
}

// Where is an ordered list of conditions joined by AND or OR. The zero value
// is an empty condition set. It is shared by the SELECT, UPDATE and DELETE
// builders and can be built on its own and passed to Model methods.
//
//	w := new(core.Where).Where("status", "active").OrWhere("role", "admin")
type Where struct {
	clauses []clause
}

// NewWhere returns an empty condition set.
func NewWhere() *Where {
	return &Where{}
}

func normalizeOperator(op string) string {
	norm := strings.ToUpper(strings.Join(strings.Fields(op), " "))
	if !validOperators[norm] {
		panic(fmt.Sprintf("koldy: invalid WHERE operator %q", op))
	}
	return norm
}

func (w *Where) add(c clause) *Where {
	w.clauses = append(w.clauses, c)
	return w
}

// Where adds "field = value" joined with AND. A nil value compares with NULL
// verbatim and binds nothing.
func (w *Where) Where(field string, value interface{}) *Where {
	return w.add(clause{link: linkAnd, kind: clauseCompare, field: field, op: "=", values: []interface{}{value}})
}

// OrWhere adds "field = value" joined with OR.
func (w *Where) OrWhere(field string, value interface{}) *Where {
	return w.add(clause{link: linkOr, kind: clauseCompare, field: field, op: "=", values: []interface{}{value}})
}

// WhereOp adds "field op value" joined with AND. It panics on an operator
// outside =, !=, <>, <, <=, >, >=, LIKE, NOT LIKE, REGEXP and NOT REGEXP.
func (w *Where) WhereOp(field, op string, value interface{}) *Where {
	return w.add(clause{link: linkAnd, kind: clauseCompare, field: field, op: normalizeOperator(op), values: []interface{}{value}})
}

// OrWhereOp adds "field op value" joined with OR.
func (w *Where) OrWhereOp(field, op string, value interface{}) *Where {
	return w.add(clause{link: linkOr, kind: clauseCompare, field: field, op: normalizeOperator(op), values: []interface{}{value}})
}

// WhereIn adds "field IN (...)". An empty list matches nothing.
func (w *Where) WhereIn(field string, values ...interface{}) *Where {
	return w.add(clause{link: linkAnd, kind: clauseIn, field: field, values: values})
}

// OrWhereIn is WhereIn joined with OR.
func (w *Where) OrWhereIn(field string, values ...interface{}) *Where {
	return w.add(clause{link: linkOr, kind: clauseIn, field: field, values: values})
}

// WhereNotIn adds "field NOT IN (...)". An empty list matches everything.
func (w *Where) WhereNotIn(field string, values ...interface{}) *Where {
	return w.add(clause{link: linkAnd, kind: clauseIn, field: field, values: values, negate: true})
}

// OrWhereNotIn is WhereNotIn joined with OR.
func (w *Where) OrWhereNotIn(field string, values ...interface{}) *Where {
	return w.add(clause{link: linkOr, kind: clauseIn, field: field, values: values, negate: true})
}

// WhereBetween adds "field BETWEEN from AND to".
func (w *Where) WhereBetween(field string, from, to interface{}) *Where {
	return w.add(clause{link: linkAnd, kind: clauseBetween, field: field, values: []interface{}{from, to}})
}

// OrWhereBetween is WhereBetween joined with OR.
func (w *Where) OrWhereBetween(field string, from, to interface{}) *Where {
	return w.add(clause{link: linkOr, kind: clauseBetween, field: field, values: []interface{}{from, to}})
}

// WhereNotBetween adds "field NOT BETWEEN from AND to".
func (w *Where) WhereNotBetween(field string, from, to interface{}) *Where {
	return w.add(clause{link: linkAnd, kind: clauseBetween, field: field, values: []interface{}{from, to}, negate: true})
}

// OrWhereNotBetween is WhereNotBetween joined with OR.
func (w *Where) OrWhereNotBetween(field string, from, to interface{}) *Where {
	return w.add(clause{link: linkOr, kind: clauseBetween, field: field, values: []interface{}{from, to}, negate: true})
}

// WhereNull adds "field IS NULL".
func (w *Where) WhereNull(field string) *Where {
	return w.add(clause{link: linkAnd, kind: clauseNull, field: field})
}

// OrWhereNull is WhereNull joined with OR.
func (w *Where) OrWhereNull(field string) *Where {
	return w.add(clause{link: linkOr, kind: clauseNull, field: field})
}

// WhereNotNull adds "field IS NOT NULL".
func (w *Where) WhereNotNull(field string) *Where {
	return w.add(clause{link: linkAnd, kind: clauseNull, field: field, negate: true})
}

// OrWhereNotNull is WhereNotNull joined with OR.
func (w *Where) OrWhereNotNull(field string) *Where {
	return w.add(clause{link: linkOr, kind: clauseNull, field: field, negate: true})
}

// WhereLike adds "field LIKE pattern".
func (w *Where) WhereLike(field string, pattern interface{}) *Where {
	return w.add(clause{link: linkAnd, kind: clauseCompare, field: field, op: "LIKE", values: []interface{}{pattern}})
}

// OrWhereLike is WhereLike joined with OR.
func (w *Where) OrWhereLike(field string, pattern interface{}) *Where {
	return w.add(clause{link: linkOr, kind: clauseCompare, field: field, op: "LIKE", values: []interface{}{pattern}})
}

// WhereNotLike adds "field NOT LIKE pattern".
func (w *Where) WhereNotLike(field string, pattern interface{}) *Where {
	return w.add(clause{link: linkAnd, kind: clauseCompare, field: field, op: "NOT LIKE", values: []interface{}{pattern}})
}

// OrWhereNotLike is WhereNotLike joined with OR.
func (w *Where) OrWhereNotLike(field string, pattern interface{}) *Where {
	return w.add(clause{link: linkOr, kind: clauseCompare, field: field, op: "NOT LIKE", values: []interface{}{pattern}})
}

// WhereGroup adds a parenthesized group built by fn, joined with AND.
// Empty groups are skipped.
//
//	q.Where("active", 1).WhereGroup(func(g *core.Where) {
//	    g.Where("role", "admin").OrWhere("role", "owner")
//	})
func (w *Where) WhereGroup(fn func(*Where)) *Where {
	g := &Where{}
	fn(g)
	return w.add(clause{link: linkAnd, kind: clauseGroup, group: g})
}

// OrWhereGroup is WhereGroup joined with OR.
func (w *Where) OrWhereGroup(fn func(*Where)) *Where {
	g := &Where{}
	fn(g)
	return w.add(clause{link: linkOr, kind: clauseGroup, group: g})
}

// WhereRaw adds a verbatim condition joined with AND.
func (w *Where) WhereRaw(exp Expression) *Where {
	return w.add(clause{link: linkAnd, kind: clauseRaw, raw: exp})
}

// OrWhereRaw adds a verbatim condition joined with OR.
func (w *Where) OrWhereRaw(exp Expression) *Where {
	return w.add(clause{link: linkOr, kind: clauseRaw, raw: exp})
}

// Match adds a copy of other as an AND-joined group.
func (w *Where) Match(other *Where) *Where {
	if other == nil || other.Len() == 0 {
		return w
	}
	return w.add(clause{link: linkAnd, kind: clauseGroup, group: other.Clone()})
}

// Len returns the number of top-level conditions.
func (w *Where) Len() int {
	if w == nil {
		return 0
	}
	return len(w.clauses)
}

// Reset removes every condition.
func (w *Where) Reset() *Where {
	w.clauses = nil
	return w
}

// Clone returns a deep copy. Modifying the copy never affects w.
func (w *Where) Clone() *Where {
	if w == nil {
		return &Where{}
	}
	c := &Where{clauses: make([]clause, len(w.clauses))}
	for i, cl := range w.clauses {
		if cl.values != nil {
			cl.values = append([]interface{}(nil), cl.values...)
		}
		if cl.group != nil {
			cl.group = cl.group.Clone()
		}
		c.clauses[i] = cl
	}
	return c
}

// ToSQL renders the conditions with fresh bindings, without the WHERE keyword.
func (w *Where) ToSQL() (string, Params) {
	b := newBindings()
	return w.render(b), b.params
}

// render joins the conditions. The linkage of the first rendered condition is
// dropped, whatever it was.
func (w *Where) render(b *bindings) string {
	var sb strings.Builder
	for _, c := range w.clauses {
		part := c.render(b)
		if part == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString(" " + c.link + " ")
		}
		sb.WriteString(part)
	}
	return sb.String()
}

func (c clause) render(b *bindings) string {
	switch c.kind {
	case clauseCompare:
		return "(" + c.field + " " + c.op + " " + b.placeholder(c.field, c.values[0]) + ")"

	case clauseIn:
		if len(c.values) == 0 {
			if c.negate {
				return "(1 = 1)"
			}
			return "(1 = 0)"
		}
		items := make([]string, len(c.values))
		for i, v := range c.values {
			items[i] = b.placeholder(c.field, v)
		}
		op := " IN "
		if c.negate {
			op = " NOT IN "
		}
		return "(" + c.field + op + "(" + strings.Join(items, ", ") + "))"

	case clauseBetween:
		op := " BETWEEN "
		if c.negate {
			op = " NOT BETWEEN "
		}
		return "(" + c.field + op + b.placeholder(c.field, c.values[0]) + " AND " + b.placeholder(c.field, c.values[1]) + ")"

	case clauseNull:
		if c.negate {
			return "(" + c.field + " IS NOT NULL)"
		}
		return "(" + c.field + " IS NULL)"

	case clauseRaw:
		if c.raw.sql == "" {
			return ""
		}
		return "(" + c.raw.sql + ")"

	case clauseGroup:
		inner := c.group.render(b)
		if inner == "" {
			return ""
		}
		return "(" + inner + ")"
	}
	return ""
}
