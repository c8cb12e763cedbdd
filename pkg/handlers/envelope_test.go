package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/skillforge-io/course-builder/pkg/apperrors"
	"github.com/skillforge-io/course-builder/pkg/middleware"
	"github.com/skillforge-io/course-builder/pkg/services"
)

type mockDispatcher struct {
	err  error
	last *services.DispatchRequest
}

func (m *mockDispatcher) Dispatch(_ context.Context, req *services.DispatchRequest) (*services.Envelope, error) {
	m.last = req
	if m.err != nil {
		return nil, m.err
	}
	return &services.Envelope{
		RequesterService: req.RequesterService,
		Payload:          req.Payload,
		Response:         req.Template.Clone(),
	}, nil
}

func postEnvelope(t *testing.T, h *EnvelopeHandler, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	mux := http.NewServeMux()
	h.RegisterRoutes(mux, nil)

	req := httptest.NewRequest(http.MethodPost, EnvelopePath, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestEnvelopeHandler_PeerReply(t *testing.T) {
	dispatcher := &mockDispatcher{}
	h := NewEnvelopeHandler(dispatcher, zap.NewNop())

	rec := postEnvelope(t, h, url.Values{
		"serviceName": {"directory"},
		"payload":     {`{"requester_service": "directory", "payload": {"course_id": "c1"}, "response": {"b": 0, "a": 0}}`},
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"response": {"b": 0, "a": 0}}`, rec.Body.String())
	assert.Equal(t, `{"response":{"b":0,"a":0}}`, strings.TrimSpace(rec.Body.String()), "template key order is kept")

	require.NotNil(t, dispatcher.last)
	assert.Equal(t, "directory", dispatcher.last.ServiceName)
	assert.Equal(t, map[string]any{"course_id": "c1"}, dispatcher.last.Payload)
}

func TestEnvelopeHandler_OwnServiceGetsFullEnvelope(t *testing.T) {
	h := NewEnvelopeHandler(&mockDispatcher{}, zap.NewNop())

	rec := postEnvelope(t, h, url.Values{
		"serviceName": {"course-builder"},
		"payload":     {`{"requester_service": "learner-ai", "payload": {"learner_id": "u1"}, "response": {"course_id": ""}}`},
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"requester_service": "learner-ai",
		"payload": {"learner_id": "u1"},
		"response": {"course_id": ""}
	}`, rec.Body.String())
}

func TestEnvelopeHandler_Errors(t *testing.T) {
	tests := []struct {
		name        string
		payload     string
		dispatchErr error
		wantStatus  int
		wantError   string
	}{
		{
			name:       "payload not json",
			payload:    "oops",
			wantStatus: http.StatusBadRequest,
			wantError:  string(apperrors.KindInvalidPayload),
		},
		{
			name:        "unknown service",
			payload:     `{"response": {}}`,
			dispatchErr: &apperrors.UnsupportedServiceError{Service: "billing"},
			wantStatus:  http.StatusBadRequest,
			wantError:   string(apperrors.KindUnsupportedService),
		},
		{
			name:        "rejected query",
			payload:     `{"response": {}}`,
			dispatchErr: &apperrors.QueryRejectedError{Rule: "forbidden_keyword"},
			wantStatus:  http.StatusBadRequest,
			wantError:   string(apperrors.KindQueryRejected),
		},
		{
			name:        "incomplete fill",
			payload:     `{"response": {"total": null}}`,
			dispatchErr: &apperrors.IncompleteFillError{Paths: []string{"total"}},
			wantStatus:  http.StatusUnprocessableEntity,
			wantError:   string(apperrors.KindIncompleteFill),
		},
		{
			name:        "upstream",
			payload:     `{"response": {}}`,
			dispatchErr: &apperrors.UpstreamError{Service: "assessment"},
			wantStatus:  http.StatusBadGateway,
			wantError:   string(apperrors.KindUpstream),
		},
		{
			name:        "not found",
			payload:     `{"response": {}}`,
			dispatchErr: apperrors.ErrNotFound,
			wantStatus:  http.StatusNotFound,
			wantError:   string(apperrors.KindNotFound),
		},
		{
			name:        "internal",
			payload:     `{"response": {}}`,
			dispatchErr: assert.AnError,
			wantStatus:  http.StatusInternalServerError,
			wantError:   string(apperrors.KindInternal),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewEnvelopeHandler(&mockDispatcher{err: tt.dispatchErr}, zap.NewNop())

			rec := postEnvelope(t, h, url.Values{
				"serviceName": {"directory"},
				"payload":     {tt.payload},
			})

			require.Equal(t, tt.wantStatus, rec.Code)
			var body map[string]string
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.Equal(t, tt.wantError, body["error"])
			assert.NotEmpty(t, body["message"])
		})
	}
}

func TestEnvelopeHandler_InternalErrorsStayPrivate(t *testing.T) {
	h := NewEnvelopeHandler(&mockDispatcher{
		err: &apperrors.QueryRejectedError{Rule: "forbidden_keyword"},
	}, zap.NewNop())

	rec := postEnvelope(t, h, url.Values{
		"serviceName": {"course-builder"},
		"payload":     {`{"payload": {"q": "DROP TABLE courses"}, "response": {}}`},
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NotContains(t, rec.Body.String(), "DROP")
}

func TestEnvelopeHandler_Pending(t *testing.T) {
	h := NewEnvelopeHandler(&mockDispatcher{
		err: &apperrors.PendingCourseCreationError{Reason: "no lessons generated"},
	}, zap.NewNop())

	rec := postEnvelope(t, h, url.Values{
		"serviceName": {"learner-ai"},
		"payload":     {`{"learner_id": "u1", "response_template": {"course_id": ""}}`},
	})

	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.JSONEq(t, `{"status": "pending", "reason": "no lessons generated"}`, rec.Body.String())
}

func TestEnvelopeHandler_MethodNotAllowed(t *testing.T) {
	mux := http.NewServeMux()
	NewEnvelopeHandler(&mockDispatcher{}, zap.NewNop()).RegisterRoutes(mux, nil)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, EnvelopePath, nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestEnvelopeHandler_Wrap(t *testing.T) {
	wrapped := false
	mux := http.NewServeMux()
	NewEnvelopeHandler(&mockDispatcher{}, zap.NewNop()).RegisterRoutes(mux, func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			wrapped = true
			next(w, r)
		}
	})

	form := url.Values{"serviceName": {"directory"}, "payload": {`{"response": {}}`}}
	req := httptest.NewRequest(http.MethodPost, EnvelopePath, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, wrapped)
}

func TestEnvelopeHandler_PropagatesRequestID(t *testing.T) {
	dispatcher := &mockDispatcher{}
	mux := http.NewServeMux()
	NewEnvelopeHandler(dispatcher, zap.NewNop()).RegisterRoutes(mux, nil)
	server := middleware.RequestLogger(zap.NewNop())(mux)

	form := url.Values{"serviceName": {"directory"}, "payload": {`{"response": {}}`}}
	req := httptest.NewRequest(http.MethodPost, EnvelopePath, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set(middleware.RequestIDHeader, "req-42")
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "req-42", dispatcher.last.RequestID)
}
