// Package templatefill reconciles caller-supplied response templates against query results.
//
// A template is a contract: its keys and nesting are fixed by the caller and the
// filled object must have exactly the same shape. Only leaf values change.
package templatefill

import (
	"reflect"

	"github.com/skillforge-io/course-builder/pkg/jsonutil"
)

// Fill returns a deep copy of tmpl whose leaves are replaced by matching values from result.
//
// result may be a single row (map or *jsonutil.Object), a list of rows, or nil.
// Keys are matched by exact name, then snake_case, then camelCase. Nested template
// objects recurse into the matching result object, or into the same result when
// nothing matches. Template arrays whose first element is an object map every result
// item through that element. Leaves without a match keep their placeholder, and so do
// leaves whose match is of another kind: scalar and null placeholders take scalars,
// other arrays take lists of scalars.
//
// tmpl is never mutated.
func Fill(tmpl *jsonutil.Object, result any) *jsonutil.Object {
	if tmpl == nil {
		return nil
	}

	switch data := normalize(result).(type) {
	case map[string]any:
		return fillObject(tmpl, data, nil)
	case []any:
		if len(data) == 0 {
			return tmpl.Clone()
		}
		first, _ := data[0].(map[string]any)
		return fillObject(tmpl, first, data)
	default:
		return tmpl.Clone()
	}
}

// fillObject fills a clone of tmpl from row. rows, when set, is the full result set
// the row came from; unmatched arrays of objects are filled from it.
func fillObject(tmpl *jsonutil.Object, row map[string]any, rows []any) *jsonutil.Object {
	out := tmpl.Clone()

	for _, key := range out.Keys() {
		placeholder, _ := out.Get(key)
		val, found := lookup(row, key)

		switch p := placeholder.(type) {
		case *jsonutil.Object:
			if nested, ok := val.(map[string]any); found && ok {
				out.Set(key, fillObject(p, nested, nil))
				continue
			}
			out.Set(key, fillObject(p, row, nil))

		case []any:
			itemTmpl, isObjectArray := firstObject(p)
			if !isObjectArray {
				if found && isScalarList(val) {
					out.Set(key, val)
				}
				continue
			}

			switch {
			case found:
				out.Set(key, fillItems(itemTmpl, asItems(val)))
			case rows != nil:
				out.Set(key, fillItems(itemTmpl, rows))
			}

		default:
			if found && isScalar(val) {
				out.Set(key, val)
			}
		}
	}

	return out
}

// isScalar reports whether v is a JSON scalar rather than an object or a list.
func isScalar(v any) bool {
	switch v.(type) {
	case map[string]any, *jsonutil.Object, []any:
		return false
	}
	switch reflect.ValueOf(v).Kind() {
	case reflect.Map, reflect.Slice, reflect.Array:
		return false
	default:
		return true
	}
}

func isScalarList(v any) bool {
	items, ok := v.([]any)
	if !ok {
		return false
	}
	for _, item := range items {
		if !isScalar(item) {
			return false
		}
	}
	return true
}

func fillItems(itemTmpl *jsonutil.Object, items []any) []any {
	out := make([]any, 0, len(items))
	for _, item := range items {
		if m, ok := item.(map[string]any); ok {
			out = append(out, fillObject(itemTmpl, m, nil))
			continue
		}
		out = append(out, itemTmpl.Clone())
	}
	return out
}

// lookup finds key in row by exact name, then snake_case, then camelCase.
// A nil value counts as absent so that placeholders survive null columns.
func lookup(row map[string]any, key string) (any, bool) {
	if row == nil {
		return nil, false
	}
	for _, candidate := range []string{key, ToSnake(key), ToCamel(key)} {
		if v, ok := row[candidate]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func firstObject(arr []any) (*jsonutil.Object, bool) {
	if len(arr) == 0 {
		return nil, false
	}
	obj, ok := arr[0].(*jsonutil.Object)
	return obj, ok && obj != nil
}

// asItems turns a matched value into a list of items. A single object becomes one item.
func asItems(v any) []any {
	switch val := v.(type) {
	case []any:
		return val
	case map[string]any:
		return []any{val}
	default:
		return []any{}
	}
}

// normalize converts result data into plain maps and slices, deep-copied so
// the filled template never aliases the caller's result.
func normalize(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case *jsonutil.Object:
		return val.ToMap()
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = normalize(item)
		}
		return out
	case []string:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = item
		}
		return out
	case []map[string]any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = normalize(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = normalize(item)
		}
		return out
	default:
		return v
	}
}
