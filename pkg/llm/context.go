package llm

import (
	"context"
	"sort"

	"go.uber.org/zap"
)

type contextKey string

const (
	llmContextKey contextKey = "llm_context"
)

// WithContext returns a context carrying values that clients add to their log lines.
// The map is merged with any values already present.
func WithContext(ctx context.Context, values map[string]any) context.Context {
	existing := GetContext(ctx)
	if existing == nil {
		existing = make(map[string]any)
	}
	for k, v := range values {
		existing[k] = v
	}
	return context.WithValue(ctx, llmContextKey, existing)
}

// GetContext retrieves a copy of the values attached by WithContext, or nil.
func GetContext(ctx context.Context) map[string]any {
	if c, ok := ctx.Value(llmContextKey).(map[string]any); ok {
		copied := make(map[string]any, len(c))
		for k, v := range c {
			copied[k] = v
		}
		return copied
	}
	return nil
}

// WithEnvelopeContext tags completions made while handling one envelope.
// Empty values are skipped.
func WithEnvelopeContext(ctx context.Context, requestID, serviceName, purpose string) context.Context {
	values := map[string]any{}
	if requestID != "" {
		values["request_id"] = requestID
	}
	if serviceName != "" {
		values["service_name"] = serviceName
	}
	if purpose != "" {
		values["purpose"] = purpose
	}
	return WithContext(ctx, values)
}

// contextFields renders the attached values as zap fields in key order.
func contextFields(ctx context.Context) []zap.Field {
	values := GetContext(ctx)
	if len(values) == 0 {
		return nil
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fields := make([]zap.Field, 0, len(keys))
	for _, k := range keys {
		fields = append(fields, zap.Any(k, values[k]))
	}
	return fields
}
