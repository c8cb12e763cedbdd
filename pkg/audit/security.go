// Package audit records security-relevant and side-effecting events as structured
// log entries for SIEM consumption.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/skillforge-io/course-builder/pkg/logging"
)

// SecurityEventType categorizes audit events for filtering and alerting.
type SecurityEventType string

const (
	// EventSQLInjectionAttempt is logged when libinjection flags a bound parameter.
	EventSQLInjectionAttempt SecurityEventType = "sql_injection_attempt"
	// EventQueryRejected is logged when a synthesized statement fails the safety rules.
	EventQueryRejected SecurityEventType = "query_rejected"
	// EventSideEffect is logged for every write or peer call an envelope causes.
	EventSideEffect SecurityEventType = "side_effect"
)

// maxLoggedValue bounds parameter values copied into events.
const maxLoggedValue = 64

// RequestInfo identifies the envelope an event belongs to.
type RequestInfo struct {
	RequestID        string `json:"request_id,omitempty"`
	ServiceName      string `json:"service_name,omitempty"`
	RequesterService string `json:"requester_service,omitempty"`
	Action           string `json:"action,omitempty"`
}

type requestInfoKey struct{}

// WithRequestInfo attaches envelope identity to ctx for later audit events.
func WithRequestInfo(ctx context.Context, info RequestInfo) context.Context {
	return context.WithValue(ctx, requestInfoKey{}, info)
}

// RequestInfoFrom returns the envelope identity in ctx, or the zero value.
func RequestInfoFrom(ctx context.Context) RequestInfo {
	info, _ := ctx.Value(requestInfoKey{}).(RequestInfo)
	return info
}

// SecurityEvent is one auditable event.
type SecurityEvent struct {
	Timestamp time.Time         `json:"timestamp"`
	EventType SecurityEventType `json:"event_type"`
	Request   RequestInfo       `json:"request"`
	Details   any               `json:"details"`
	Severity  string            `json:"severity"` // info, warning, critical
}

// InjectionDetails describes a parameter flagged by libinjection.
type InjectionDetails struct {
	ParamName   string `json:"param_name"`
	ParamValue  string `json:"param_value"`
	Fingerprint string `json:"fingerprint"`
	Mode        string `json:"mode"`
}

// RejectionDetails describes a statement refused by the safety rules. Query holds
// the sanitized statement and must never be sent back to the caller.
type RejectionDetails struct {
	Rule   string `json:"rule"`
	Reason string `json:"reason"`
	Mode   string `json:"mode"`
	Query  string `json:"query"`
}

// SideEffectDetails describes a write or an outbound call.
type SideEffectDetails struct {
	Kind         string `json:"kind"` // statement, peer_call, course_created, dictionary_merge, ...
	Target       string `json:"target"`
	RowsAffected int64  `json:"rows_affected,omitempty"`
	CourseID     string `json:"course_id,omitempty"`
	LearnerID    string `json:"learner_id,omitempty"`
	Outcome      string `json:"outcome,omitempty"`
}

// SecurityAuditor writes audit events under the "security_audit" logger name.
type SecurityAuditor struct {
	logger *zap.Logger
}

// NewSecurityAuditor creates a new security auditor with a dedicated logger namespace.
func NewSecurityAuditor(logger *zap.Logger) *SecurityAuditor {
	return &SecurityAuditor{logger: logger.Named("security_audit")}
}

// LogInjectionAttempt records a bound parameter that looks like SQL injection.
// It is logged at ERROR level with "critical" severity.
func (a *SecurityAuditor) LogInjectionAttempt(ctx context.Context, details InjectionDetails) {
	details.ParamValue = logging.TruncateString(details.ParamValue, maxLoggedValue)
	event := a.event(ctx, EventSQLInjectionAttempt, details, "critical")

	a.logger.Error("SQL injection attempt detected",
		zap.String("event_json", marshalEvent(event)),
		zap.String("request_id", event.Request.RequestID),
		zap.String("requester_service", event.Request.RequesterService),
		zap.String("param_name", details.ParamName),
		zap.String("fingerprint", details.Fingerprint),
		zap.String("severity", event.Severity),
	)
}

// LogQueryRejected records a statement refused by the safety rules at WARN level.
func (a *SecurityAuditor) LogQueryRejected(ctx context.Context, details RejectionDetails) {
	details.Query = logging.SanitizeQuery(details.Query)
	event := a.event(ctx, EventQueryRejected, details, "warning")

	a.logger.Warn("Synthesized statement rejected",
		zap.String("event_json", marshalEvent(event)),
		zap.String("request_id", event.Request.RequestID),
		zap.String("requester_service", event.Request.RequesterService),
		zap.String("rule", details.Rule),
		zap.String("reason", details.Reason),
		zap.String("severity", event.Severity),
	)
}

// LogSideEffect records a write or outbound call caused by an envelope at INFO level.
func (a *SecurityAuditor) LogSideEffect(ctx context.Context, details SideEffectDetails) {
	event := a.event(ctx, EventSideEffect, details, "info")

	a.logger.Info("Envelope side effect",
		zap.String("event_json", marshalEvent(event)),
		zap.String("request_id", event.Request.RequestID),
		zap.String("kind", details.Kind),
		zap.String("target", details.Target),
		zap.String("severity", event.Severity),
	)
}

func (a *SecurityAuditor) event(ctx context.Context, t SecurityEventType, details any, severity string) SecurityEvent {
	return SecurityEvent{
		Timestamp: time.Now().UTC(),
		EventType: t,
		Request:   RequestInfoFrom(ctx),
		Details:   details,
		Severity:  severity,
	}
}

func marshalEvent(event SecurityEvent) string {
	// Only plain structs and strings are marshaled, so this cannot fail.
	b, _ := json.Marshal(event)
	return string(b)
}
