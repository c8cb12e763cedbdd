package apperrors

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

// Kind is the machine-readable classification returned to callers with every hard failure.
type Kind string

const (
	KindUnsupportedService Kind = "unsupported_service"
	KindInvalidTemplate    Kind = "invalid_template"
	KindInvalidPayload     Kind = "invalid_payload"
	KindSynthesisFailed    Kind = "synthesis_failed"
	KindQueryRejected      Kind = "query_rejected"
	KindPending            Kind = "pending"
	KindIncompleteFill     Kind = "incomplete_fill"
	KindUpstream           Kind = "upstream_failed"
	KindNotFound           Kind = "not_found"
	KindInternal           Kind = "internal"
)

// UnsupportedServiceError is returned when an envelope names a service outside the closed set.
type UnsupportedServiceError struct {
	Service string
}

func (e *UnsupportedServiceError) Error() string {
	return fmt.Sprintf("unsupported service %q", e.Service)
}

// InvalidTemplateError is returned when the response template is missing or not a JSON object.
type InvalidTemplateError struct {
	Reason string
}

func (e *InvalidTemplateError) Error() string {
	return "invalid response template: " + e.Reason
}

// InvalidPayloadError is returned when a structurally required identifier is absent
// or the payload cannot be decoded.
type InvalidPayloadError struct {
	Field  string
	Reason string
}

func (e *InvalidPayloadError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid payload: missing required field %q", e.Field)
	}
	return "invalid payload: " + e.Reason
}

// MissingField builds an InvalidPayloadError for an absent identifier.
func MissingField(field string) *InvalidPayloadError {
	return &InvalidPayloadError{Field: field}
}

// SynthesisError is returned when the completion service produced no usable statement.
type SynthesisError struct {
	Reason string
	Cause  error
}

func (e *SynthesisError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("query synthesis failed: %s: %v", e.Reason, e.Cause)
	}
	return "query synthesis failed: " + e.Reason
}

func (e *SynthesisError) Unwrap() error {
	return e.Cause
}

// QueryRejectedError is returned by the safety validator. Reason is for logs only;
// Error() never contains query text or schema details.
type QueryRejectedError struct {
	Rule   string
	Reason string
}

func (e *QueryRejectedError) Error() string {
	return "query rejected by safety rules: " + e.Rule
}

// PendingCourseCreationError signals that the request was valid but upstream data
// required to finish it does not exist yet. It is not a failure and must not be retried blindly.
type PendingCourseCreationError struct {
	Reason string
}

func (e *PendingCourseCreationError) Error() string {
	return "course creation pending: " + e.Reason
}

// IncompleteFillError is returned when a filled template still has null leaves.
type IncompleteFillError struct {
	Paths []string
}

func (e *IncompleteFillError) Error() string {
	return "response template left unfilled at: " + strings.Join(e.Paths, ", ")
}

// UpstreamError wraps a non-transient failure from a peer service.
type UpstreamError struct {
	Service string
	Cause   error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream %s failed: %v", e.Service, e.Cause)
}

func (e *UpstreamError) Unwrap() error {
	return e.Cause
}

// KindOf classifies err for the response envelope.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}

	var (
		unsupported *UnsupportedServiceError
		template    *InvalidTemplateError
		payload     *InvalidPayloadError
		synthesis   *SynthesisError
		rejected    *QueryRejectedError
		pending     *PendingCourseCreationError
		incomplete  *IncompleteFillError
		upstream    *UpstreamError
	)

	switch {
	case errors.As(err, &pending):
		return KindPending
	case errors.As(err, &unsupported):
		return KindUnsupportedService
	case errors.As(err, &template):
		return KindInvalidTemplate
	case errors.As(err, &payload):
		return KindInvalidPayload
	case errors.As(err, &rejected):
		return KindQueryRejected
	case errors.As(err, &synthesis):
		return KindSynthesisFailed
	case errors.As(err, &incomplete):
		return KindIncompleteFill
	case errors.As(err, &upstream):
		return KindUpstream
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	default:
		return KindInternal
	}
}

// IsValidation reports whether err is a caller mistake that must never be retried.
func IsValidation(err error) bool {
	switch KindOf(err) {
	case KindUnsupportedService, KindInvalidTemplate, KindInvalidPayload, KindQueryRejected:
		return true
	default:
		return false
	}
}

// IsPending reports whether err is the distinguished pending outcome.
func IsPending(err error) bool {
	return KindOf(err) == KindPending
}

// PublicMessage returns the message safe to send across the trust boundary.
func PublicMessage(err error) string {
	var (
		pending  *PendingCourseCreationError
		rejected *QueryRejectedError
		upstream *UpstreamError
	)

	switch KindOf(err) {
	case KindPending:
		errors.As(err, &pending)
		return pending.Error()
	case KindQueryRejected:
		errors.As(err, &rejected)
		return rejected.Error()
	case KindSynthesisFailed:
		return "could not derive a query for the requested data"
	case KindUpstream:
		errors.As(err, &upstream)
		return fmt.Sprintf("upstream service %s failed", upstream.Service)
	case KindNotFound:
		return "not found"
	case KindInternal:
		return "internal error"
	default:
		return err.Error()
	}
}
