package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/skillforge-io/course-builder/pkg/apperrors"
	"github.com/skillforge-io/course-builder/pkg/middleware"
	"github.com/skillforge-io/course-builder/pkg/services"
)

// EnvelopePath is the single route every peer posts envelopes to.
const EnvelopePath = "/api/fill-content-metrics"

// maxEnvelopeBytes bounds the form body.
const maxEnvelopeBytes = 1 << 20

// PeerReply wraps the filled template for envelopes sent by peer services.
type PeerReply struct {
	Response any `json:"response"`
}

// EnvelopeHandler decodes form-encoded envelopes and hands them to the dispatcher.
type EnvelopeHandler struct {
	dispatcher services.Dispatcher
	logger     *zap.Logger
}

// NewEnvelopeHandler creates a new EnvelopeHandler.
func NewEnvelopeHandler(dispatcher services.Dispatcher, logger *zap.Logger) *EnvelopeHandler {
	return &EnvelopeHandler{
		dispatcher: dispatcher,
		logger:     logger.Named("envelope-handler"),
	}
}

// RegisterRoutes registers the envelope route. wrap, when non-nil, decorates the handler.
func (h *EnvelopeHandler) RegisterRoutes(mux *http.ServeMux, wrap func(http.HandlerFunc) http.HandlerFunc) {
	handler := h.Handle
	if wrap != nil {
		handler = wrap(handler)
	}
	mux.HandleFunc("POST "+EnvelopePath, handler)
}

// Handle handles POST /api/fill-content-metrics.
// Form fields: serviceName (routing key) and payload (JSON envelope or bare payload).
func (h *EnvelopeHandler) Handle(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxEnvelopeBytes)
	if err := r.ParseForm(); err != nil {
		h.writeError(w, &apperrors.InvalidPayloadError{Reason: "request body is not a form"})
		return
	}

	req, err := services.ParseEnvelope(r.PostFormValue("serviceName"), []byte(r.PostFormValue("payload")))
	if err != nil {
		h.writeError(w, err)
		return
	}
	req.RequestID = middleware.RequestIDFrom(r.Context())

	env, err := h.dispatcher.Dispatch(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}

	// The own service gets the whole envelope back; peers only the filled template.
	var body any = PeerReply{Response: env.Response}
	if req.ServiceName == string(services.ServiceCourseBuilder) {
		body = env
	}
	if err := WriteJSON(w, http.StatusOK, body); err != nil {
		h.logger.Error("Failed to write envelope response", zap.Error(err))
	}
}

func (h *EnvelopeHandler) writeError(w http.ResponseWriter, err error) {
	if err := AppErrorResponse(w, err); err != nil {
		h.logger.Error("Failed to write error response", zap.Error(err))
	}
}
