package templatefill

import (
	"fmt"

	"github.com/skillforge-io/course-builder/pkg/apperrors"
	"github.com/skillforge-io/course-builder/pkg/jsonutil"
)

// Unfilled returns the paths of every null leaf in obj, in key order.
// Paths use dots for object keys and [i] for array positions.
func Unfilled(obj *jsonutil.Object) []string {
	var paths []string
	collectNulls(obj, "", &paths)
	return paths
}

// RequireComplete fails with IncompleteFillError when obj still has null leaves.
func RequireComplete(obj *jsonutil.Object) error {
	if paths := Unfilled(obj); len(paths) > 0 {
		return &apperrors.IncompleteFillError{Paths: paths}
	}
	return nil
}

func collectNulls(v any, path string, paths *[]string) {
	switch val := v.(type) {
	case nil:
		*paths = append(*paths, path)
	case *jsonutil.Object:
		if val == nil {
			*paths = append(*paths, path)
			return
		}
		for _, key := range val.Keys() {
			child, _ := val.Get(key)
			collectNulls(child, joinPath(path, key), paths)
		}
	case map[string]any:
		for _, key := range jsonutil.FromMap(val).Keys() {
			collectNulls(val[key], joinPath(path, key), paths)
		}
	case []any:
		for i, item := range val {
			collectNulls(item, fmt.Sprintf("%s[%d]", path, i), paths)
		}
	}
}

func joinPath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}
