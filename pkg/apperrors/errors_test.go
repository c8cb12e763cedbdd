package apperrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{name: "nil", err: nil, want: ""},
		{name: "unsupported service", err: &UnsupportedServiceError{Service: "x"}, want: KindUnsupportedService},
		{name: "invalid template", err: &InvalidTemplateError{Reason: "null"}, want: KindInvalidTemplate},
		{name: "missing field", err: MissingField("learner_id"), want: KindInvalidPayload},
		{name: "synthesis", err: &SynthesisError{Reason: "empty"}, want: KindSynthesisFailed},
		{name: "rejected", err: &QueryRejectedError{Rule: "ddl"}, want: KindQueryRejected},
		{name: "pending wrapped", err: fmt.Errorf("build: %w", &PendingCourseCreationError{Reason: "no skills"}), want: KindPending},
		{name: "incomplete", err: &IncompleteFillError{Paths: []string{"a"}}, want: KindIncompleteFill},
		{name: "upstream", err: &UpstreamError{Service: "learner-ai", Cause: errors.New("boom")}, want: KindUpstream},
		{name: "not found", err: fmt.Errorf("course: %w", ErrNotFound), want: KindNotFound},
		{name: "plain", err: errors.New("boom"), want: KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestPublicMessage_NeverLeaksRejectionReason(t *testing.T) {
	err := &QueryRejectedError{Rule: "ddl_keyword", Reason: "DROP TABLE students found at offset 0"}

	msg := PublicMessage(fmt.Errorf("execute: %w", err))

	assert.NotContains(t, msg, "DROP")
	assert.NotContains(t, msg, "students")
	assert.Contains(t, msg, "ddl_keyword")
}

func TestPublicMessage_InternalErrorsAreOpaque(t *testing.T) {
	msg := PublicMessage(errors.New("pq: relation \"courses\" does not exist"))
	assert.Equal(t, "internal error", msg)
}

func TestIsValidation(t *testing.T) {
	assert.True(t, IsValidation(&UnsupportedServiceError{Service: "x"}))
	assert.True(t, IsValidation(&QueryRejectedError{Rule: "multiple_statements"}))
	assert.False(t, IsValidation(&PendingCourseCreationError{Reason: "r"}))
	assert.False(t, IsValidation(&SynthesisError{Reason: "r"}))
}

func TestIsPending(t *testing.T) {
	assert.True(t, IsPending(fmt.Errorf("wrapped: %w", &PendingCourseCreationError{Reason: "no topics"})))
	assert.False(t, IsPending(errors.New("other")))
}
