package llm

import (
	"errors"
	"fmt"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Error(t *testing.T) {
	err := &Error{
		Type:       ErrorTypeEndpoint,
		Message:    "server error",
		StatusCode: 503,
		Model:      "gpt-4o",
		Endpoint:   "https://api.openai.com/v1",
		Cause:      errors.New("upstream"),
	}

	msg := err.Error()
	assert.Contains(t, msg, "HTTP 503")
	assert.Contains(t, msg, "model=gpt-4o")
	assert.Contains(t, msg, "endpoint=api.openai.com")
	assert.NotContains(t, msg, "/v1")
	assert.Contains(t, msg, "upstream")
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("boom")
	err := NewError(ErrorTypeUnknown, "llm error", false, cause)
	assert.True(t, errors.Is(err, cause))
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		expectedType  ErrorType
		retryable     bool
		expectedState int
	}{
		{"unauthorized", errors.New("error, status code: 401, message: Unauthorized"), ErrorTypeAuth, false, 401},
		{"invalid key", errors.New("Invalid API key provided"), ErrorTypeAuth, false, 0},
		{"model missing", errors.New("The model `gpt-9` does not exist"), ErrorTypeModel, false, 0},
		{"endpoint missing", errors.New("status code: 404"), ErrorTypeEndpoint, false, 404},
		{"rate limited", errors.New("status code: 429, rate limit reached"), ErrorTypeRate, true, 429},
		{"connection refused", errors.New("dial tcp 127.0.0.1:8000: connect: connection refused"), ErrorTypeEndpoint, true, 0},
		{"timeout", errors.New("context deadline exceeded"), ErrorTypeEndpoint, true, 0},
		{"canceled", errors.New("context canceled"), ErrorTypeEndpoint, false, 0},
		{"bad gateway", errors.New("status code: 502"), ErrorTypeEndpoint, true, 502},
		{"anthropic overloaded", errors.New("overloaded_error: Overloaded"), ErrorTypeEndpoint, true, 0},
		{"unknown", errors.New("something odd"), ErrorTypeUnknown, false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyError(tt.err)
			require.NotNil(t, got)
			assert.Equal(t, tt.expectedType, got.Type)
			assert.Equal(t, tt.retryable, got.Retryable)
			assert.Equal(t, tt.expectedState, got.StatusCode)
			assert.True(t, errors.Is(got, tt.err))
		})
	}
}

func TestClassifyError_TypedOpenAIError(t *testing.T) {
	apiErr := &openai.APIError{HTTPStatusCode: 503, Message: "busy"}
	got := ClassifyError(fmt.Errorf("create completion: %w", apiErr))

	assert.Equal(t, 503, got.StatusCode)
	assert.Equal(t, ErrorTypeEndpoint, got.Type)
	assert.True(t, got.Retryable)
}

func TestClassifyError_PassesThroughStructured(t *testing.T) {
	original := NewError(ErrorTypeCircuit, "circuit open", false, nil)
	assert.Same(t, original, ClassifyError(fmt.Errorf("wrapped: %w", original)))
	assert.Nil(t, ClassifyError(nil))
}

func TestIsRetryableAndGetErrorType(t *testing.T) {
	retryable := NewError(ErrorTypeRate, "rate limited", true, nil)
	assert.True(t, retryable.IsRetryable())
	assert.False(t, NewError(ErrorTypeAuth, "bad key", false, nil).IsRetryable())

	assert.Equal(t, ErrorTypeRate, GetErrorType(fmt.Errorf("x: %w", retryable)))
	assert.Equal(t, ErrorTypeUnknown, GetErrorType(errors.New("plain")))
}
