package dto

import (
	"github.com/skillforge-io/course-builder/pkg/schema"
)

// CanonicalPayload rewrites alias keys in raw to their canonical snake_case names.
// When several aliases of one field are present the first in precedence order wins
// and the others are dropped. Unknown keys are kept as they are. Set-valued fields
// are coerced to sequences. raw is not modified.
func CanonicalPayload(raw map[string]any) map[string]any {
	out := make(map[string]any, len(raw))
	consumed := make(map[string]bool)

	for _, f := range schema.Fields {
		names := f.Names()
		var (
			first    string
			anyFound bool
		)
		for _, n := range names {
			if _, ok := raw[n]; ok {
				consumed[n] = true
				if !anyFound {
					first, anyFound = n, true
				}
			}
		}
		if !anyFound {
			continue
		}
		v, ok := FirstPresent(raw, names...)
		if !ok {
			// Only empty values present: keep the empty value under the canonical name.
			v = raw[first]
		}
		if f.SetValued {
			v = coerceSetValued(f.Canonical, v)
		}
		out[f.Canonical] = v
	}

	for k, v := range raw {
		if consumed[k] {
			continue
		}
		out[k] = v
	}
	return out
}

func coerceSetValued(canonical string, v any) any {
	switch canonical {
	case "skills", "trainer_ids":
		return stringsToAny(ToStringSlice(v))
	default:
		return ToSlice(v)
	}
}

func stringsToAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
