// Package core implements the query builders, the connection adapter, and
// the model layer on top of database/sql.
package core

import (
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/vkoudela/koldy/internal/dialects"
)

// Params holds named bindings. Builders produce SQL with :name placeholders
// and a matching Params map; the Adapter converts both to the dialect's
// positional form before execution.
//
//	adapter.Execute(ctx, "SELECT * FROM users WHERE id = :id", core.Params{"id": 7})
type Params map[string]interface{}

var (
	// namedPlaceholderRegex matches :name placeholders. Names start with a letter.
	namedPlaceholderRegex = regexp.MustCompile(`:([A-Za-z][A-Za-z0-9_]*)`)
	// positionalPlaceholderRegex matches ? and $n placeholders.
	positionalPlaceholderRegex = regexp.MustCompile(`\?|\$[0-9]+`)
)

// bindings hands out unique placeholder keys during one render pass.
// The first use of a field gets its sanitized name, later uses get
// name_2, name_3 and so on.
//
// With a positional dialect set the render emits that dialect's
// placeholders and collects the arguments in order, so builder output is
// never scanned for :name text.
type bindings struct {
	params     Params
	seen       map[string]int
	positional dialects.Dialect
	args       []interface{}
}

func newBindings() *bindings {
	return &bindings{params: Params{}, seen: map[string]int{}}
}

func positionalBindings(d dialects.Dialect) *bindings {
	b := newBindings()
	b.positional = d
	return b
}

// renderNamed runs render with fresh named bindings.
func renderNamed(render func(*bindings) (string, error)) (string, Params, error) {
	b := newBindings()
	sql, err := render(b)
	if err != nil {
		return "", nil, err
	}
	return sql, b.params, nil
}

// add binds value and returns the placeholder key.
func (b *bindings) add(field string, value interface{}) string {
	base := bindingName(field)
	for {
		b.seen[base]++
		key := base
		if n := b.seen[base]; n > 1 {
			key = base + "_" + strconv.Itoa(n)
		}
		if _, taken := b.params[key]; !taken {
			b.params[key] = value
			return key
		}
	}
}

// placeholder renders value as raw SQL or as a new binding.
func (b *bindings) placeholder(field string, value interface{}) string {
	if raw, ok := rawSQL(value); ok {
		return raw
	}
	key := b.add(field, value)
	if b.positional != nil {
		b.args = append(b.args, value)
		return b.positional.Placeholder(len(b.args))
	}
	return ":" + key
}

// bindingName turns a field reference such as "u.created_at" or "COUNT(*)"
// into a placeholder-safe name.
func bindingName(field string) string {
	var sb strings.Builder
	lastUnderscore := false
	for _, r := range field {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			sb.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				sb.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	name := strings.Trim(sb.String(), "_")
	if name == "" {
		return "p"
	}
	if c := name[0]; !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z') {
		return "p_" + name
	}
	return name
}

// namedMatches returns the :name placeholders in sql whose names are present
// in params. A colon preceded by another colon (a PostgreSQL cast) is
// skipped, and so is anything inside a quoted literal or identifier.
func namedMatches(sql string, params Params) [][]int {
	all := namedPlaceholderRegex.FindAllStringSubmatchIndex(sql, -1)
	if len(all) == 0 {
		return nil
	}
	quoted := quotedRegions(sql)
	out := all[:0]
	for _, m := range all {
		if m[0] > 0 && sql[m[0]-1] == ':' {
			continue
		}
		if insideRegion(quoted, m[0]) {
			continue
		}
		if _, ok := params[sql[m[2]:m[3]]]; !ok {
			continue
		}
		out = append(out, m)
	}
	return out
}

// quotedRegions returns the [start, end) spans of '...', "..." and `...`
// sections of sql. A doubled quote or a backslash escape stays inside the
// span. An unterminated quote runs to the end.
func quotedRegions(sql string) [][2]int {
	var regions [][2]int
	for i := 0; i < len(sql); i++ {
		q := sql[i]
		if q != '\'' && q != '"' && q != '`' {
			continue
		}
		start := i
		i++
		for i < len(sql) {
			c := sql[i]
			if c == '\\' && q != '`' {
				i += 2
				continue
			}
			if c == q {
				if i+1 < len(sql) && sql[i+1] == q {
					i += 2
					continue
				}
				break
			}
			i++
		}
		end := i + 1
		if end > len(sql) {
			end = len(sql)
		}
		regions = append(regions, [2]int{start, end})
	}
	return regions
}

func insideRegion(regions [][2]int, pos int) bool {
	for _, r := range regions {
		if pos < r[0] {
			return false
		}
		if pos < r[1] {
			return true
		}
	}
	return false
}

// compile converts :name placeholders into the dialect's positional
// placeholders and returns the ordered arguments. Names not present in
// params are left as they are. A name used twice is bound twice.
func compile(sql string, params Params, d dialects.Dialect) (string, []interface{}) {
	if len(params) == 0 {
		return sql, nil
	}

	matches := namedMatches(sql, params)
	if len(matches) == 0 {
		return sql, nil
	}

	var sb strings.Builder
	args := make([]interface{}, 0, len(matches))
	last := 0
	for i, m := range matches {
		sb.WriteString(sql[last:m[0]])
		sb.WriteString(d.Placeholder(i + 1))
		args = append(args, params[sql[m[2]:m[3]]])
		last = m[1]
	}
	sb.WriteString(sql[last:])
	return sb.String(), args
}

// Interpolate renders sql with every known :name placeholder replaced by
// its literal value. The result is for logs and debugging only and must
// never be executed.
func Interpolate(sql string, params Params) string {
	matches := namedMatches(sql, params)
	if len(matches) == 0 {
		return sql
	}

	var sb strings.Builder
	last := 0
	for _, m := range matches {
		sb.WriteString(sql[last:m[0]])
		sb.WriteString(Literal(params[sql[m[2]:m[3]]]))
		last = m[1]
	}
	sb.WriteString(sql[last:])
	return sb.String()
}

// interpolateArgs is Interpolate for positional statements.
func interpolateArgs(sql string, args []interface{}) string {
	if len(args) == 0 {
		return sql
	}
	next := 0
	return positionalPlaceholderRegex.ReplaceAllStringFunc(sql, func(ph string) string {
		idx := next
		if ph != "?" {
			n, err := strconv.Atoi(ph[1:])
			if err != nil {
				return ph
			}
			idx = n - 1
		}
		next++
		if idx < 0 || idx >= len(args) {
			return ph
		}
		return Literal(args[idx])
	})
}

// Literal renders v as a SQL literal for debug output. Numbers and numeric
// strings are bare, nil is NULL, booleans are 1 or 0, everything else is
// quoted with embedded quotes doubled and backslashes escaped.
func Literal(v interface{}) string {
	if raw, ok := rawSQL(v); ok {
		return raw
	}

	switch x := v.(type) {
	case bool:
		if x {
			return "1"
		}
		return "0"
	case string:
		if isNumeric(x) {
			return x
		}
		return quote(x)
	case []byte:
		return Literal(string(x))
	case time.Time:
		return quote(x.Format("2006-01-02 15:04:05"))
	case fmt.Stringer:
		return quote(x.String())
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10)
	case reflect.Float32, reflect.Float64:
		return strconv.FormatFloat(rv.Float(), 'f', -1, 64)
	case reflect.Ptr:
		if rv.IsNil() {
			return Null.sql
		}
		return Literal(rv.Elem().Interface())
	}
	return quote(fmt.Sprint(v))
}

func quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `'`, `''`)
	return "'" + s + "'"
}

func isNumeric(s string) bool {
	if s == "" || strings.TrimSpace(s) != s {
		return false
	}
	_, err := strconv.ParseFloat(s, 64)
	return err == nil && !strings.ContainsAny(s, "xXpP_") && !isSpecialFloat(s)
}

func isSpecialFloat(s string) bool {
	switch strings.ToLower(strings.TrimLeft(s, "+-")) {
	case "inf", "infinity", "nan":
		return true
	}
	return false
}
