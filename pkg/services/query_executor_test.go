package services

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/skillforge-io/course-builder/pkg/apperrors"
	"github.com/skillforge-io/course-builder/pkg/audit"
	"github.com/skillforge-io/course-builder/pkg/database"
	"github.com/skillforge-io/course-builder/pkg/metrics"
	"github.com/skillforge-io/course-builder/pkg/sql"
)

func newObservedExecutor(t *testing.T) (QueryExecutor, *observer.ObservedLogs, *metrics.Metrics) {
	t.Helper()
	core, recorded := observer.New(zapcore.DebugLevel)
	m := metrics.New()
	return NewQueryExecutor(nil, audit.NewSecurityAuditor(zap.New(core)), m, zap.NewNop()), recorded, m
}

func TestQueryExecutor_RejectsUnsafeStatements(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		actionMode bool
		wantRule   string
	}{
		{
			name:     "smuggled drop",
			query:    "DROP TABLE students; SELECT 1",
			wantRule: sql.RuleDDL,
		},
		{
			name:       "drop in action mode",
			query:      "DROP TABLE students; SELECT 1",
			actionMode: true,
			wantRule:   sql.RuleDDL,
		},
		{
			name:     "update inside a read",
			query:    "SELECT id FROM courses WHERE id IN (SELECT 1 FROM x WHERE UPDATE = 1)",
			wantRule: sql.RuleWriteInRead,
		},
		{
			name:     "write in data-filling mode",
			query:    "UPDATE courses SET status = 'archived'",
			wantRule: sql.RuleNotRead,
		},
		{
			name:       "two statements",
			query:      "SELECT 1; SELECT 2",
			actionMode: true,
			wantRule:   sql.RuleMultipleStatements,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			executor, recorded, m := newObservedExecutor(t)

			result, err := executor.Execute(context.Background(), tt.query, map[string]any{}, tt.actionMode)

			require.Error(t, err)
			assert.Nil(t, result)
			var rejected *apperrors.QueryRejectedError
			require.ErrorAs(t, err, &rejected)
			assert.Equal(t, tt.wantRule, rejected.Rule)
			assert.NotContains(t, apperrors.PublicMessage(err), "students")

			assert.Equal(t, 1, recorded.FilterMessage("Synthesized statement rejected").Len())
			assert.Equal(t, 1.0, testutil.ToFloat64(m.QueryRejections.WithLabelValues(tt.wantRule)))
		})
	}
}

func TestQueryExecutor_RejectsInjectedParameter(t *testing.T) {
	executor, recorded, m := newObservedExecutor(t)

	_, err := executor.Execute(context.Background(),
		"SELECT name FROM courses WHERE id = $1",
		map[string]any{"course_id": "'; DROP TABLE courses--"}, false)

	var rejected *apperrors.QueryRejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, RuleParameterInjection, rejected.Rule)
	assert.Equal(t, 1, recorded.FilterMessage("SQL injection attempt detected").Len())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.QueryRejections.WithLabelValues(RuleParameterInjection)))
}

func TestQueryExecutor_RejectsUnboundPlaceholder(t *testing.T) {
	executor, _, m := newObservedExecutor(t)

	_, err := executor.Execute(context.Background(),
		"SELECT name FROM courses WHERE id = $1", map[string]any{}, false)

	var rejected *apperrors.QueryRejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, RuleUnboundParameter, rejected.Rule)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.QueryRejections.WithLabelValues(RuleUnboundParameter)))
}

func TestQueryExecutor_RequiresScope(t *testing.T) {
	executor, _, _ := newObservedExecutor(t)

	_, err := executor.Execute(context.Background(),
		"SELECT name FROM courses WHERE id = $1", map[string]any{"course_id": "c1"}, false)

	assert.ErrorIs(t, err, database.ErrNoScope)
}

func TestShapeRows(t *testing.T) {
	row := func(id string) map[string]any { return map[string]any{"id": id} }

	assert.Equal(t, map[string]any{}, shapeRows(nil))
	assert.Equal(t, row("a"), shapeRows([]map[string]any{row("a")}))
	assert.Equal(t, []any{row("a"), row("b")}, shapeRows([]map[string]any{row("a"), row("b")}))
}

func TestJSONValue(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 30, 0, 0, time.FixedZone("IDT", 3*3600))
	id := [16]byte{0x55, 0x0e, 0x84, 0x00, 0xe2, 0x9b, 0x41, 0xd4, 0xa7, 0x16, 0x44, 0x66, 0x55, 0x44, 0x00, 0x00}

	var whole pgtype.Numeric
	require.NoError(t, whole.Scan("42"))
	var fraction pgtype.Numeric
	require.NoError(t, fraction.Scan("3.5"))

	tests := []struct {
		name string
		in   any
		want any
	}{
		{name: "nil", in: nil, want: nil},
		{name: "int32", in: int32(7), want: int64(7)},
		{name: "whole numeric", in: whole, want: int64(42)},
		{name: "fractional numeric", in: fraction, want: 3.5},
		{name: "null numeric", in: pgtype.Numeric{}, want: nil},
		{name: "time", in: at, want: "2026-03-01T09:30:00Z"},
		{name: "bytes", in: []byte("abc"), want: "abc"},
		{name: "uuid", in: id, want: "550e8400-e29b-41d4-a716-446655440000"},
		{name: "nested", in: map[string]any{"skills": []any{"go", int16(2)}}, want: map[string]any{"skills": []any{"go", int64(2)}}},
		{name: "string", in: "x", want: "x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, jsonValue(tt.in))
		})
	}
}
