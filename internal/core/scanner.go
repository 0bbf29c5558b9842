package core

import (
	"database/sql"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"
)

// scanRows reads every row into a Row map and returns the column order.
func scanRows(rows *sql.Rows) ([]Row, []string, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, nil, fmt.Errorf("scanner: failed to get columns: %w", err)
	}

	var out []Row
	for rows.Next() {
		values := make([]interface{}, len(columns))
		dests := make([]interface{}, len(columns))
		for i := range values {
			dests[i] = &values[i]
		}
		if err := rows.Scan(dests...); err != nil {
			return nil, nil, fmt.Errorf("scanner: scan failed: %w", err)
		}

		row := make(Row, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		out = append(out, row)
	}

	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("scanner: rows iteration failed: %w", err)
	}
	return out, columns, nil
}

// structInfo maps lower-cased column names to struct field index paths.
type structInfo struct {
	fields map[string][]int
}

var structCache sync.Map // reflect.Type -> *structInfo

func getStructInfo(typ reflect.Type) *structInfo {
	if info, ok := structCache.Load(typ); ok {
		return info.(*structInfo)
	}
	info := &structInfo{fields: map[string][]int{}}
	collectFields(typ, nil, info)
	actual, _ := structCache.LoadOrStore(typ, info)
	return actual.(*structInfo)
}

func collectFields(typ reflect.Type, index []int, info *structInfo) {
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		if !field.IsExported() {
			continue
		}
		path := append(append([]int{}, index...), i)

		tag, hasTag := field.Tag.Lookup("db")
		if tag == "-" {
			continue
		}
		if field.Anonymous && !hasTag && field.Type.Kind() == reflect.Struct {
			collectFields(field.Type, path, info)
			continue
		}

		name := field.Name
		if hasTag {
			name = strings.Split(tag, ",")[0]
		}
		name = strings.ToLower(name)
		if _, dup := info.fields[name]; !dup {
			info.fields[name] = path
		}
	}
}

// decodeRow copies row into dest, a pointer to a struct.
func decodeRow(row Row, dest interface{}) error {
	v := reflect.ValueOf(dest)
	if v.Kind() != reflect.Ptr || v.IsNil() || v.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("scanner: dest must be pointer to struct, got %T", dest)
	}
	return decodeInto(row, v.Elem())
}

// decodeRows appends one element per row to dest, a pointer to a slice of
// structs or struct pointers.
func decodeRows(rows []Row, dest interface{}) error {
	v := reflect.ValueOf(dest)
	if v.Kind() != reflect.Ptr || v.IsNil() || v.Elem().Kind() != reflect.Slice {
		return fmt.Errorf("scanner: dest must be pointer to slice, got %T", dest)
	}
	slice := v.Elem()
	elemType := slice.Type().Elem()
	isPtr := elemType.Kind() == reflect.Ptr
	if isPtr {
		elemType = elemType.Elem()
	}
	if elemType.Kind() != reflect.Struct {
		return fmt.Errorf("scanner: slice element must be struct or *struct, got %s", elemType.Kind())
	}

	for _, row := range rows {
		elem := reflect.New(elemType)
		if err := decodeInto(row, elem.Elem()); err != nil {
			return err
		}
		if isPtr {
			slice.Set(reflect.Append(slice, elem))
		} else {
			slice.Set(reflect.Append(slice, elem.Elem()))
		}
	}
	return nil
}

func decodeInto(row Row, target reflect.Value) error {
	info := getStructInfo(target.Type())
	for col, value := range row {
		path, ok := info.fields[strings.ToLower(col)]
		if !ok {
			continue
		}
		if err := assign(target.FieldByIndex(path), value); err != nil {
			return fmt.Errorf("scanner: column %s: %w", col, err)
		}
	}
	return nil
}

var scannerType = reflect.TypeOf((*sql.Scanner)(nil)).Elem()

// assign stores a driver value into field, converting between the types
// drivers commonly return (int64, float64, string, []byte, bool, time.Time).
func assign(field reflect.Value, value interface{}) error {
	if field.CanAddr() && field.Addr().Type().Implements(scannerType) {
		return field.Addr().Interface().(sql.Scanner).Scan(value)
	}

	if value == nil {
		field.Set(reflect.Zero(field.Type()))
		return nil
	}

	if field.Kind() == reflect.Ptr {
		elem := reflect.New(field.Type().Elem())
		if err := assign(elem.Elem(), value); err != nil {
			return err
		}
		field.Set(elem)
		return nil
	}

	src := reflect.ValueOf(value)
	if src.Type().AssignableTo(field.Type()) {
		field.Set(src)
		return nil
	}

	if b, ok := value.([]byte); ok {
		value = string(b)
		src = reflect.ValueOf(value)
	}

	switch field.Kind() {
	case reflect.String:
		switch x := value.(type) {
		case string:
			field.SetString(x)
		case time.Time:
			field.SetString(x.Format(time.RFC3339))
		default:
			field.SetString(fmt.Sprint(x))
		}
		return nil

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if s, ok := value.(string); ok {
			n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
			if err != nil {
				return err
			}
			field.SetInt(n)
			return nil
		}

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if s, ok := value.(string); ok {
			n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
			if err != nil {
				return err
			}
			field.SetUint(n)
			return nil
		}

	case reflect.Float32, reflect.Float64:
		if s, ok := value.(string); ok {
			f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			if err != nil {
				return err
			}
			field.SetFloat(f)
			return nil
		}

	case reflect.Bool:
		switch x := value.(type) {
		case string:
			b, err := strconv.ParseBool(x)
			if err != nil {
				return err
			}
			field.SetBool(b)
			return nil
		case int64:
			field.SetBool(x != 0)
			return nil
		}

	case reflect.Slice:
		if field.Type().Elem().Kind() == reflect.Uint8 {
			if s, ok := value.(string); ok {
				field.SetBytes([]byte(s))
				return nil
			}
		}

	case reflect.Struct:
		if field.Type() == reflect.TypeOf(time.Time{}) {
			if s, ok := value.(string); ok {
				t, err := parseTime(s)
				if err != nil {
					return err
				}
				field.Set(reflect.ValueOf(t))
				return nil
			}
		}
	}

	if src.Type().ConvertibleTo(field.Type()) && isNumberKind(src.Kind()) && isNumberKind(field.Kind()) {
		field.Set(src.Convert(field.Type()))
		return nil
	}
	return fmt.Errorf("cannot assign %T to %s", value, field.Type())
}

func isNumberKind(k reflect.Kind) bool {
	return k >= reflect.Int && k <= reflect.Float64
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", s)
}
