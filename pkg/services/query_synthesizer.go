package services

import (
	"context"
	"encoding/json"
	"sort"

	"go.uber.org/zap"

	"github.com/skillforge-io/course-builder/pkg/apperrors"
	"github.com/skillforge-io/course-builder/pkg/audit"
	"github.com/skillforge-io/course-builder/pkg/jsonutil"
	"github.com/skillforge-io/course-builder/pkg/llm"
	"github.com/skillforge-io/course-builder/pkg/logging"
	"github.com/skillforge-io/course-builder/pkg/metrics"
	"github.com/skillforge-io/course-builder/pkg/prompts"
	"github.com/skillforge-io/course-builder/pkg/schema"
	"github.com/skillforge-io/course-builder/pkg/sql"
	"github.com/skillforge-io/course-builder/pkg/templatefill"
)

// DefaultSynthesisTemperature keeps the query planner close to deterministic.
const DefaultSynthesisTemperature = 0.1

// QuerySynthesizer asks the completion service for one SQL statement that answers
// a payload and response template. The statement is untrusted until the executor
// has validated it.
type QuerySynthesizer interface {
	Synthesize(ctx context.Context, payload map[string]any, template *jsonutil.Object, action string, actionMode bool) (string, error)
}

type querySynthesizer struct {
	llmClient   llm.LLMClient
	temperature float64
	metrics     *metrics.Metrics
	logger      *zap.Logger
}

// NewQuerySynthesizer creates a QuerySynthesizer. A temperature of zero or below
// uses DefaultSynthesisTemperature.
func NewQuerySynthesizer(llmClient llm.LLMClient, temperature float64, m *metrics.Metrics, logger *zap.Logger) QuerySynthesizer {
	if temperature <= 0 {
		temperature = DefaultSynthesisTemperature
	}
	return &querySynthesizer{
		llmClient:   llmClient,
		temperature: temperature,
		metrics:     m,
		logger:      logger.Named("query-synthesizer"),
	}
}

var _ QuerySynthesizer = (*querySynthesizer)(nil)

func (s *querySynthesizer) Synthesize(ctx context.Context, payload map[string]any, template *jsonutil.Object, action string, actionMode bool) (string, error) {
	if template == nil {
		return "", &apperrors.InvalidTemplateError{Reason: "template is missing"}
	}

	payloadJSON, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", &apperrors.InvalidPayloadError{Reason: "payload is not serializable"}
	}
	templateJSON, err := json.MarshalIndent(template, "", "  ")
	if err != nil {
		return "", &apperrors.InvalidTemplateError{Reason: "template is not serializable"}
	}

	keys := TemplateLeafPaths(template)
	prompt := prompts.BuildQuerySynthesisPrompt(prompts.QuerySynthesisInput{
		SchemaText:   schema.Render(),
		AliasText:    schema.RenderAliases(),
		PayloadJSON:  string(payloadJSON),
		TemplateJSON: string(templateJSON),
		TemplateKeys: keys,
		Action:       action,
		ActionMode:   actionMode,
	})

	info := audit.RequestInfoFrom(ctx)
	llmCtx := llm.WithEnvelopeContext(ctx, info.RequestID, info.ServiceName, "query_synthesis")

	result, err := s.llmClient.GenerateResponse(llmCtx, prompt, prompts.QuerySynthesisSystemMessage, s.temperature, false)
	s.metrics.RecordLLMCall("query_synthesis", err)
	if err != nil {
		s.logger.Error("Completion failed during query synthesis",
			zap.String("service_name", info.ServiceName),
			zap.String("error", logging.SanitizeError(err)))
		return "", &apperrors.SynthesisError{Reason: "completion failed", Cause: err}
	}

	statement, err := sql.ExtractStatement(result.Content)
	if err != nil {
		s.logger.Warn("Completion held no usable statement",
			zap.String("service_name", info.ServiceName),
			zap.Int("completion_length", len(result.Content)),
			zap.Error(err))
		return "", &apperrors.SynthesisError{Reason: "no statement in completion", Cause: err}
	}

	if !actionMode {
		if missing := uncoveredTemplateKeys(template, statement); len(missing) > 0 {
			// The executor still runs the statement; unfilled leaves surface in the completeness check.
			s.logger.Warn("Synthesized statement does not alias every template key",
				zap.Strings("missing_keys", missing),
				zap.String("query", logging.SanitizeQuery(statement)))
		}
	}

	s.logger.Debug("Synthesized statement",
		zap.Bool("action_mode", actionMode),
		zap.String("action", action),
		zap.String("query", logging.SanitizeQuery(statement)))

	return statement, nil
}

// TemplateLeafPaths lists the leaf paths of a template in key order. Arrays of
// objects contribute their item shape as "key[].field".
func TemplateLeafPaths(template *jsonutil.Object) []string {
	var paths []string
	collectLeafPaths(template, "", &paths)
	return paths
}

func collectLeafPaths(obj *jsonutil.Object, prefix string, paths *[]string) {
	for _, key := range obj.Keys() {
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}
		value, _ := obj.Get(key)
		switch v := value.(type) {
		case *jsonutil.Object:
			if v.Len() == 0 {
				*paths = append(*paths, path)
				continue
			}
			collectLeafPaths(v, path, paths)
		case []any:
			if len(v) > 0 {
				if item, ok := v[0].(*jsonutil.Object); ok && item.Len() > 0 {
					collectLeafPaths(item, path+"[]", paths)
					continue
				}
			}
			*paths = append(*paths, path)
		default:
			*paths = append(*paths, path)
		}
	}
}

// uncoveredTemplateKeys returns top-level scalar template keys that no output column
// of statement can fill, comparing names the way the filler does.
func uncoveredTemplateKeys(template *jsonutil.Object, statement string) []string {
	columns := sql.ColumnNames(statement)
	if len(columns) == 0 {
		return nil
	}

	available := make(map[string]bool, len(columns))
	for _, c := range columns {
		available[templatefill.ToSnake(c)] = true
	}

	var missing []string
	for _, key := range template.Keys() {
		value, _ := template.Get(key)
		switch value.(type) {
		case *jsonutil.Object, []any:
			continue
		}
		if !available[templatefill.ToSnake(key)] {
			missing = append(missing, key)
		}
	}
	sort.Strings(missing)
	return missing
}

func describeMode(actionMode bool) string {
	if actionMode {
		return string(sql.ModeAction)
	}
	return string(sql.ModeDataFilling)
}

func modeFor(actionMode bool) sql.Mode {
	if actionMode {
		return sql.ModeAction
	}
	return sql.ModeDataFilling
}
