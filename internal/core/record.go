package core

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"time"
)

// Record is one table row. It keeps the values as loaded (the original
// snapshot) next to the current values so Save writes only what changed.
//
// Unknown fields are an error: Get returns ErrFieldNotFound rather than nil.
type Record struct {
	model    *Model
	data     map[string]interface{}
	original map[string]interface{}
}

func newRecord(m *Model, data map[string]interface{}) *Record {
	return &Record{model: m, data: copyMap(data)}
}

// loadedRecord wraps a stored row. The original snapshot is only kept when
// the row carries its primary key; without it the record cannot be updated
// and is treated as new.
func loadedRecord(m *Model, row Row) *Record {
	r := &Record{model: m, data: copyMap(row)}
	if m != nil && row[m.primaryKey] != nil {
		r.original = copyMap(row)
	}
	return r
}

func copyMap[M ~map[string]interface{}](src M) map[string]interface{} {
	if src == nil {
		return map[string]interface{}{}
	}
	dst := make(map[string]interface{}, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

// Model returns the model the record belongs to, or nil.
func (r *Record) Model() *Model { return r.model }

// Get returns the current value of field.
func (r *Record) Get(field string) (interface{}, error) {
	v, ok := r.data[field]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFieldNotFound, field)
	}
	return v, nil
}

// Set changes the current value of field.
func (r *Record) Set(field string, value interface{}) *Record {
	r.data[field] = value
	return r
}

// Has reports whether field is present, even when its value is nil.
func (r *Record) Has(field string) bool {
	_, ok := r.data[field]
	return ok
}

// Data returns a copy of the current values.
func (r *Record) Data() map[string]interface{} { return copyMap(r.data) }

// Original returns a copy of the values as loaded, or nil for a new record.
func (r *Record) Original() map[string]interface{} {
	if r.original == nil {
		return nil
	}
	return copyMap(r.original)
}

// key returns the primary key the stored row is known by: the loaded value
// when there is one, so changing the key on a loaded record still targets
// its own row.
func (r *Record) key() (interface{}, bool) {
	if r.model == nil {
		return nil, false
	}
	if v := r.original[r.model.primaryKey]; v != nil {
		return v, true
	}
	v := r.data[r.model.primaryKey]
	return v, v != nil
}

// IsNew reports whether the record has no primary key value, in which case
// Save inserts it.
func (r *Record) IsNew() bool {
	_, ok := r.key()
	return !ok
}

// Changes returns the fields whose current value differs from the original.
// The model's never-update fields are left out, and so is the primary key
// unless it was loaded and has been changed since.
func (r *Record) Changes() map[string]interface{} {
	changes := map[string]interface{}{}
	for k, v := range r.data {
		if r.model != nil && r.model.neverUpdate[k] {
			continue
		}
		if _, loaded := r.original[k]; r.model != nil && k == r.model.primaryKey && !loaded {
			continue
		}
		if orig, ok := r.original[k]; ok && sameValue(orig, v) {
			continue
		}
		changes[k] = v
	}
	return changes
}

// Save inserts a new record or updates the changed fields of a loaded one.
// It returns the affected row count; 0 with no statement executed when
// nothing changed.
func (r *Record) Save(ctx context.Context) (int64, error) {
	if r.model == nil {
		return 0, ErrDetachedRecord
	}

	if r.IsNew() {
		created, err := r.model.Create(ctx, r.data)
		if err != nil {
			return 0, err
		}
		r.data = created.data
		r.original = copyMap(created.data)
		return 1, nil
	}

	changes := r.Changes()
	if len(changes) == 0 {
		return 0, nil
	}

	key, _ := r.key()
	n, err := r.model.Update(ctx, changes, ByKey(key))
	if err != nil {
		return 0, err
	}
	r.original = copyMap(r.data)
	return n, nil
}

// Delete removes the record's row by primary key.
func (r *Record) Delete(ctx context.Context) (int64, error) {
	if r.model == nil {
		return 0, ErrDetachedRecord
	}
	key, ok := r.key()
	if !ok {
		return 0, ErrMissingKey
	}
	return r.model.Delete(ctx, ByKey(key))
}

// Reload replaces the record's values with the stored row. found is false
// when the row no longer exists; the record is left unchanged then.
func (r *Record) Reload(ctx context.Context) (found bool, err error) {
	if r.model == nil {
		return false, ErrDetachedRecord
	}
	key, ok := r.key()
	if !ok {
		return false, ErrMissingKey
	}
	fresh, found, err := r.model.FetchOne(ctx, ByKey(key))
	if err != nil || !found {
		return false, err
	}
	r.data, r.original = fresh.data, fresh.original
	return true, nil
}

// Decode copies the current values into dest, a pointer to a struct whose
// fields are matched by db tag.
func (r *Record) Decode(dest interface{}) error {
	return decodeRow(r.data, dest)
}

// Fields returns the current field names, sorted.
func (r *Record) Fields() []string {
	names := make([]string, 0, len(r.data))
	for k := range r.data {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// sameValue compares loosely: []byte equals the same string, and numbers of
// different kinds are equal when their values are.
func sameValue(a, b interface{}) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	if ab, ok := a.([]byte); ok {
		a = string(ab)
	}
	if bb, ok := b.([]byte); ok {
		b = string(bb)
	}

	if at, ok := a.(time.Time); ok {
		bt, ok := b.(time.Time)
		return ok && at.Equal(bt)
	}
	if ae, ok := a.(Expression); ok {
		be, ok := b.(Expression)
		return ok && ae == be
	}

	av, bv := reflect.ValueOf(a), reflect.ValueOf(b)
	if isNumberKind(av.Kind()) && isNumberKind(bv.Kind()) {
		return numbersEqual(av, bv)
	}
	if as, ok := a.(string); ok {
		bs, ok := b.(string)
		return ok && as == bs
	}
	return reflect.DeepEqual(a, b)
}

func numbersEqual(a, b reflect.Value) bool {
	isFloat := func(v reflect.Value) bool {
		return v.Kind() == reflect.Float32 || v.Kind() == reflect.Float64
	}
	if isFloat(a) || isFloat(b) {
		return toFloat(a) == toFloat(b)
	}
	isUint := func(v reflect.Value) bool { return v.Kind() >= reflect.Uint && v.Kind() <= reflect.Uintptr }
	switch {
	case isUint(a) && isUint(b):
		return a.Uint() == b.Uint()
	case isUint(a):
		return b.Int() >= 0 && a.Uint() == uint64(b.Int())
	case isUint(b):
		return a.Int() >= 0 && uint64(a.Int()) == b.Uint()
	}
	return a.Int() == b.Int()
}

func toFloat(v reflect.Value) float64 {
	switch {
	case v.Kind() == reflect.Float32 || v.Kind() == reflect.Float64:
		return v.Float()
	case v.Kind() >= reflect.Uint && v.Kind() <= reflect.Uintptr:
		return float64(v.Uint())
	}
	return float64(v.Int())
}
