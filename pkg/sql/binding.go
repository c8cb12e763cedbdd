package sql

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/skillforge-io/course-builder/pkg/jsonutil"
	"github.com/skillforge-io/course-builder/pkg/schema"
	"github.com/skillforge-io/course-builder/pkg/templatefill"
)

// ErrUnboundParameter indicates a placeholder that no payload value could be bound to.
var ErrUnboundParameter = errors.New("no payload value for placeholder")

// ErrParameterGap indicates positional placeholders that skip a number ($1, $3).
var ErrParameterGap = errors.New("positional placeholders are not contiguous")

// Binding is a statement ready to execute: positional SQL plus its arguments.
// Names[i] is the payload key bound to Args[i].
type Binding struct {
	Query string
	Names []string
	Args  []any
}

// ParameterBinder matches statement placeholders to payload values.
type ParameterBinder interface {
	Bind(query string, payload map[string]any) (*Binding, error)
}

var (
	positionalRegex = regexp.MustCompile(`\$(\d+)`)

	// insertValuesRegex captures the column list and the VALUES list of a single-row INSERT.
	insertValuesRegex = regexp.MustCompile(`(?is)\bINSERT\s+INTO\s+[\w.]+\s*\(([^)]*)\)\s*VALUES\s*\(([^)]*)\)`)

	barePlaceholderRegex = regexp.MustCompile(`^\s*\$(\d+)\s*$`)
)

// DefaultFallbackOrder is tried when no field name precedes a placeholder.
var DefaultFallbackOrder = []string{"course_id", "learner_id", "user_id", "id"}

// DefaultProximityWindow is how many bytes before a placeholder are searched for a field name.
const DefaultProximityWindow = 40

// ProximityBinder binds $N placeholders by looking at the text just before each one
// for the name of a payload field ("WHERE c.course_id = $1" binds course_id).
// When no field name is found it falls back to Fallback, preferring keys not bound yet.
// Placeholders inside string literals are ignored.
//
// This is a heuristic. Statements that use {{name}} placeholders should go through
// NamedBinder instead.
type ProximityBinder struct {
	Window   int
	Fallback []string
}

var _ ParameterBinder = (*ProximityBinder)(nil)

// NewProximityBinder creates a ProximityBinder with the default window and fallback order.
func NewProximityBinder() *ProximityBinder {
	return &ProximityBinder{
		Window:   DefaultProximityWindow,
		Fallback: DefaultFallbackOrder,
	}
}

// Bind implements ParameterBinder.
func (b *ProximityBinder) Bind(query string, payload map[string]any) (*Binding, error) {
	masked := MaskLiterals(query)
	matches := positionalRegex.FindAllStringSubmatchIndex(masked, -1)

	// First occurrence of each placeholder number.
	firstPos := make(map[int]int)
	maxN := 0
	for _, m := range matches {
		n, err := strconv.Atoi(masked[m[2]:m[3]])
		if err != nil || n == 0 {
			return nil, fmt.Errorf("invalid placeholder %q", masked[m[0]:m[1]])
		}
		if _, seen := firstPos[n]; !seen {
			firstPos[n] = m[0]
		}
		if n > maxN {
			maxN = n
		}
	}
	if len(firstPos) != maxN {
		return nil, fmt.Errorf("%w: %d placeholders, highest $%d", ErrParameterGap, len(firstPos), maxN)
	}

	keys := bindableKeys(payload)
	columns := insertColumnHints(masked)
	binding := &Binding{
		Query: query,
		Names: make([]string, maxN),
		Args:  make([]any, maxN),
	}
	used := make(map[string]bool)

	for n := 1; n <= maxN; n++ {
		pos := firstPos[n]
		start := pos - b.window()
		if start < 0 {
			start = 0
		}
		context := strings.ToLower(masked[start:pos])

		key := ""
		if col, ok := columns[n]; ok {
			key = nearestKey(col, keys)
		}
		if key == "" {
			key = nearestKey(context, keys)
		}
		if key == "" {
			key = b.fallbackKey(payload, used)
		}
		if key == "" {
			return nil, fmt.Errorf("%w: $%d", ErrUnboundParameter, n)
		}

		used[key] = true
		binding.Names[n-1] = key
		binding.Args[n-1] = NormalizeArg(payload[key])
	}

	return binding, nil
}

// insertColumnHints maps placeholder numbers to the column they are inserted into,
// for statements of the form INSERT INTO t (a, b) VALUES ($1, $2). In such a
// statement the text before $2 is the column list, so proximity alone would bind
// every value to the last column.
func insertColumnHints(masked string) map[int]string {
	m := insertValuesRegex.FindStringSubmatch(masked)
	if m == nil {
		return nil
	}
	cols := strings.Split(m[1], ",")
	vals := strings.Split(m[2], ",")
	if len(cols) != len(vals) {
		return nil
	}

	hints := make(map[int]string, len(cols))
	for i, v := range vals {
		pm := barePlaceholderRegex.FindStringSubmatch(v)
		if pm == nil {
			continue
		}
		n, err := strconv.Atoi(pm[1])
		if err != nil {
			continue
		}
		hints[n] = strings.ToLower(strings.TrimSpace(cols[i]))
	}
	return hints
}

func (b *ProximityBinder) window() int {
	if b.Window <= 0 {
		return DefaultProximityWindow
	}
	return b.Window
}

func (b *ProximityBinder) fallbackKey(payload map[string]any, used map[string]bool) string {
	fallback := b.Fallback
	if fallback == nil {
		fallback = DefaultFallbackOrder
	}

	var usedCandidate string
	for _, k := range fallback {
		if !isBindable(payload[k]) {
			continue
		}
		if !used[k] {
			return k
		}
		if usedCandidate == "" {
			usedCandidate = k
		}
	}
	return usedCandidate
}

// nearestKey returns the key whose last whole-word occurrence in context ends closest
// to the end of context. Longer keys win ties so "learner_id" beats "id".
func nearestKey(context string, keys []string) string {
	best, bestEnd := "", -1
	for _, k := range keys {
		for _, variant := range keyVariants(k) {
			end := lastWordEnd(context, variant)
			if end > bestEnd || (end == bestEnd && end >= 0 && len(k) > len(best)) {
				best, bestEnd = k, end
			}
		}
	}
	return best
}

// keyVariants lists the spellings of payload key k that may appear in a statement:
// the key itself, its snake_case form and the column it is an alias of.
func keyVariants(k string) []string {
	variants := []string{strings.ToLower(k)}
	for _, v := range []string{strings.ToLower(templatefill.ToSnake(k)), schema.Canonical(k)} {
		if !containsString(variants, v) {
			variants = append(variants, v)
		}
	}
	return variants
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// lastWordEnd returns the end offset of the last occurrence of word in s that is
// not part of a longer identifier, or -1.
func lastWordEnd(s, word string) int {
	for end := len(s); end > 0; {
		i := strings.LastIndex(s[:end], word)
		if i < 0 {
			return -1
		}
		j := i + len(word)
		if (i == 0 || !isIdentByte(s[i-1])) && (j == len(s) || !isIdentByte(s[j])) {
			return j
		}
		end = i
	}
	return -1
}

func isIdentByte(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// bindableKeys returns payload keys holding scalar or list values, longest first.
func bindableKeys(payload map[string]any) []string {
	keys := make([]string, 0, len(payload))
	for k, v := range payload {
		if isBindable(v) {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	return keys
}

func isBindable(v any) bool {
	switch v.(type) {
	case nil, map[string]any, *jsonutil.Object:
		return false
	default:
		return true
	}
}

// NormalizeArg converts decoded JSON values into types pgx encodes directly.
// json.Number becomes int64 or float64, whole float64 values become int64 and
// lists of strings become []string.
func NormalizeArg(v any) any {
	switch val := v.(type) {
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i
		}
		if f, err := val.Float64(); err == nil {
			return f
		}
		return val.String()
	case float64:
		// int64(val) is undefined outside [-2^63, 2^63).
		if val >= math.MinInt64 && val < -math.MinInt64 && val == math.Trunc(val) {
			return int64(val)
		}
		return val
	case []any:
		strs := make([]string, 0, len(val))
		for _, item := range val {
			s, ok := item.(string)
			if !ok {
				return val
			}
			strs = append(strs, s)
		}
		return strs
	default:
		return v
	}
}

// NamedBinder binds {{name}} placeholders by exact payload key, falling back to
// the snake_case form of the name and then to its aliases.
type NamedBinder struct{}

var _ ParameterBinder = NamedBinder{}

// Bind implements ParameterBinder.
func (NamedBinder) Bind(query string, payload map[string]any) (*Binding, error) {
	values := make(map[string]any)
	for _, name := range ExtractParameters(query) {
		if v, ok := payload[name]; ok {
			values[name] = NormalizeArg(v)
			continue
		}
		if v, ok := payload[templatefill.ToSnake(name)]; ok {
			values[name] = NormalizeArg(v)
			continue
		}
		for _, alias := range schema.Aliases(schema.Canonical(name)) {
			if v, ok := payload[alias]; ok {
				values[name] = NormalizeArg(v)
				break
			}
		}
	}

	prepared, names, args, err := SubstituteParameters(query, values)
	if err != nil {
		return nil, err
	}
	return &Binding{Query: prepared, Names: names, Args: args}, nil
}

// AutoBinder uses NamedBinder for statements with {{name}} placeholders and
// Proximity otherwise.
type AutoBinder struct {
	Proximity *ProximityBinder
}

var _ ParameterBinder = (*AutoBinder)(nil)

// NewAutoBinder creates an AutoBinder with a default ProximityBinder.
func NewAutoBinder() *AutoBinder {
	return &AutoBinder{Proximity: NewProximityBinder()}
}

// Bind implements ParameterBinder.
func (b *AutoBinder) Bind(query string, payload map[string]any) (*Binding, error) {
	if len(ExtractParameters(query)) > 0 {
		return NamedBinder{}.Bind(query, payload)
	}
	return b.Proximity.Bind(query, payload)
}
