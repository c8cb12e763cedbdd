package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"go.uber.org/zap"

	"github.com/skillforge-io/course-builder/pkg/apperrors"
	"github.com/skillforge-io/course-builder/pkg/audit"
	"github.com/skillforge-io/course-builder/pkg/database"
	"github.com/skillforge-io/course-builder/pkg/logging"
	"github.com/skillforge-io/course-builder/pkg/metrics"
	"github.com/skillforge-io/course-builder/pkg/sql"
)

// Rejection rules raised after the statement itself passed validation.
const (
	RuleUnboundParameter   = "unbound_parameter"
	RuleParameterInjection = "parameter_injection"
)

// WriteResultOK is the result value of a write without a RETURNING clause.
const WriteResultOK = "OK"

// QueryExecutor runs a synthesized statement after validating it and binding its
// placeholders to payload values.
//
// Results are shaped for the template filler: a read with no row is an empty
// object, one row is that row, several rows are a list. A write with RETURNING
// is shaped the same way; a write without it yields
// {"result": "OK", "rows_affected": n}.
type QueryExecutor interface {
	Execute(ctx context.Context, query string, payload map[string]any, actionMode bool) (any, error)
}

type queryExecutor struct {
	binder  sql.ParameterBinder
	auditor *audit.SecurityAuditor
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewQueryExecutor creates a QueryExecutor. A nil binder uses sql.NewAutoBinder.
func NewQueryExecutor(binder sql.ParameterBinder, auditor *audit.SecurityAuditor, m *metrics.Metrics, logger *zap.Logger) QueryExecutor {
	if binder == nil {
		binder = sql.NewAutoBinder()
	}
	return &queryExecutor{
		binder:  binder,
		auditor: auditor,
		metrics: m,
		logger:  logger.Named("query-executor"),
	}
}

var _ QueryExecutor = (*queryExecutor)(nil)

func (e *queryExecutor) Execute(ctx context.Context, query string, payload map[string]any, actionMode bool) (any, error) {
	mode := describeMode(actionMode)

	validated, err := sql.ValidateStatement(query, modeFor(actionMode))
	if err != nil {
		var rejected *apperrors.QueryRejectedError
		if errors.As(err, &rejected) {
			e.reject(ctx, rejected, mode, query)
		}
		return nil, err
	}

	binding, err := e.binder.Bind(validated, payload)
	if err != nil {
		rejected := &apperrors.QueryRejectedError{Rule: RuleUnboundParameter, Reason: err.Error()}
		e.reject(ctx, rejected, mode, validated)
		return nil, rejected
	}

	for _, check := range sql.CheckBinding(binding) {
		if !check.IsSQLi {
			continue
		}
		e.auditor.LogInjectionAttempt(ctx, audit.InjectionDetails{
			ParamName:   check.ParamName,
			ParamValue:  fmt.Sprint(check.ParamValue),
			Fingerprint: check.Fingerprint,
			Mode:        mode,
		})
		e.metrics.RecordQueryRejection(RuleParameterInjection)
		return nil, &apperrors.QueryRejectedError{
			Rule:   RuleParameterInjection,
			Reason: fmt.Sprintf("parameter %q matched fingerprint %s", check.ParamName, check.Fingerprint),
		}
	}

	conn, err := database.QuerierFrom(ctx)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	rows, err := conn.Query(ctx, binding.Query, binding.Args...)
	if err != nil {
		e.logger.Error("Statement failed",
			zap.String("query", logging.SanitizeQuery(binding.Query)),
			zap.String("error", logging.SanitizeError(err)))
		return nil, fmt.Errorf("failed to execute statement: %w", err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	var results []map[string]any
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("failed to read row: %w", err)
		}
		row := make(map[string]any, len(fields))
		for i, f := range fields {
			row[f.Name] = jsonValue(values[i])
		}
		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		e.logger.Error("Statement failed",
			zap.String("query", logging.SanitizeQuery(binding.Query)),
			zap.String("error", logging.SanitizeError(err)))
		return nil, fmt.Errorf("failed to execute statement: %w", err)
	}
	tag := rows.CommandTag()

	stmtType := sql.DetectStatementType(validated)
	e.logger.Debug("Statement executed",
		zap.String("statement_type", string(stmtType)),
		zap.Strings("bound", binding.Names),
		zap.Int("rows", len(results)),
		zap.Duration("elapsed", time.Since(start)))

	if !stmtType.IsModifying() {
		return shapeRows(results), nil
	}

	e.auditor.LogSideEffect(ctx, audit.SideEffectDetails{
		Kind:         "statement",
		Target:       string(stmtType),
		RowsAffected: tag.RowsAffected(),
		Outcome:      "ok",
	})

	if sql.HasReturning(validated) {
		return shapeRows(results), nil
	}
	return map[string]any{
		"result":        WriteResultOK,
		"rows_affected": tag.RowsAffected(),
	}, nil
}

func (e *queryExecutor) reject(ctx context.Context, rejected *apperrors.QueryRejectedError, mode, query string) {
	e.auditor.LogQueryRejected(ctx, audit.RejectionDetails{
		Rule:   rejected.Rule,
		Reason: rejected.Reason,
		Mode:   mode,
		Query:  query,
	})
	e.metrics.RecordQueryRejection(rejected.Rule)
}

// shapeRows turns a result set into the value the filler expects.
func shapeRows(rows []map[string]any) any {
	switch len(rows) {
	case 0:
		return map[string]any{}
	case 1:
		return rows[0]
	default:
		list := make([]any, len(rows))
		for i, r := range rows {
			list[i] = r
		}
		return list
	}
}

// jsonValue converts a decoded column value into a type that encodes cleanly as JSON.
func jsonValue(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case pgtype.Numeric:
		if !val.Valid {
			return nil
		}
		if val.Exp >= 0 {
			if i, err := val.Int64Value(); err == nil && i.Valid {
				return i.Int64
			}
		}
		f, err := val.Float64Value()
		if err != nil || !f.Valid || math.IsInf(f.Float64, 0) || math.IsNaN(f.Float64) {
			return nil
		}
		return f.Float64
	case time.Time:
		return val.UTC().Format(time.RFC3339Nano)
	case []byte:
		return string(val)
	case [16]byte:
		return uuid.UUID(val).String()
	case int32:
		return int64(val)
	case int16:
		return int64(val)
	case float32:
		return float64(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = jsonValue(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = jsonValue(item)
		}
		return out
	default:
		return v
	}
}
