package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/skillforge-io/course-builder/pkg/apperrors"
	"github.com/skillforge-io/course-builder/pkg/audit"
	"github.com/skillforge-io/course-builder/pkg/jsonutil"
	"github.com/skillforge-io/course-builder/pkg/logging"
	"github.com/skillforge-io/course-builder/pkg/metrics"
	"github.com/skillforge-io/course-builder/pkg/peers"
)

// ServiceName is the closed set of services an envelope can come from.
type ServiceName string

const (
	ServiceCourseBuilder ServiceName = CourseBuilderService
	ServiceLearnerAI     ServiceName = peers.ServiceLearnerAI
	ServiceContentStudio ServiceName = peers.ServiceContentStudio
	ServiceAssessment    ServiceName = peers.ServiceAssessment
	ServiceDirectory     ServiceName = peers.ServiceDirectory
	ServiceSkillsEngine  ServiceName = peers.ServiceSkillsEngine
)

// ValidServiceNames contains every routable service name.
var ValidServiceNames = []ServiceName{
	ServiceCourseBuilder,
	ServiceLearnerAI,
	ServiceContentStudio,
	ServiceAssessment,
	ServiceDirectory,
	ServiceSkillsEngine,
}

// ParseServiceName matches s exactly (case-sensitive) against the known services.
func ParseServiceName(s string) (ServiceName, error) {
	for _, name := range ValidServiceNames {
		if string(name) == s {
			return name, nil
		}
	}
	return "", &apperrors.UnsupportedServiceError{Service: s}
}

// ServiceHandler answers envelopes sent by one service and returns the filled template.
type ServiceHandler interface {
	Handle(ctx context.Context, req *DispatchRequest) (*jsonutil.Object, error)
}

// Handlers holds one handler per service. Every field is required.
type Handlers struct {
	CourseBuilder ServiceHandler
	LearnerAI     ServiceHandler
	ContentStudio ServiceHandler
	Assessment    ServiceHandler
	Directory     ServiceHandler
	SkillsEngine  ServiceHandler
}

// Dispatcher routes envelopes to the handler of the sending service.
type Dispatcher interface {
	Dispatch(ctx context.Context, req *DispatchRequest) (*Envelope, error)
}

type dispatcher struct {
	handlers Handlers
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// NewDispatcher creates a Dispatcher. It fails when any service has no handler.
func NewDispatcher(handlers Handlers, m *metrics.Metrics, logger *zap.Logger) (Dispatcher, error) {
	d := &dispatcher{handlers: handlers, metrics: m, logger: logger.Named("dispatcher")}
	for _, name := range ValidServiceNames {
		if d.handlerFor(name) == nil {
			return nil, fmt.Errorf("no handler registered for service %q", name)
		}
	}
	return d, nil
}

var _ Dispatcher = (*dispatcher)(nil)

func (d *dispatcher) handlerFor(name ServiceName) ServiceHandler {
	switch name {
	case ServiceCourseBuilder:
		return d.handlers.CourseBuilder
	case ServiceLearnerAI:
		return d.handlers.LearnerAI
	case ServiceContentStudio:
		return d.handlers.ContentStudio
	case ServiceAssessment:
		return d.handlers.Assessment
	case ServiceDirectory:
		return d.handlers.Directory
	case ServiceSkillsEngine:
		return d.handlers.SkillsEngine
	default:
		return nil
	}
}

func (d *dispatcher) Dispatch(ctx context.Context, req *DispatchRequest) (*Envelope, error) {
	start := time.Now()

	name, err := ParseServiceName(req.ServiceName)
	if err != nil {
		d.metrics.RecordEnvelope("unknown", string(apperrors.KindOf(err)), time.Since(start))
		d.logger.Warn("Envelope for unknown service", zap.String("service_name", req.ServiceName))
		return nil, err
	}

	if req.Template == nil {
		err := &apperrors.InvalidTemplateError{Reason: "response template is missing"}
		d.metrics.RecordEnvelope(string(name), string(apperrors.KindOf(err)), time.Since(start))
		return nil, err
	}
	if req.Payload == nil {
		req.Payload = map[string]any{}
	}
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}

	ctx = audit.WithRequestInfo(ctx, audit.RequestInfo{
		RequestID:        req.RequestID,
		ServiceName:      string(name),
		RequesterService: req.RequesterService,
		Action:           req.Action,
	})

	response, err := d.handlerFor(name).Handle(ctx, req)
	elapsed := time.Since(start)

	fields := []zap.Field{
		zap.String("request_id", req.RequestID),
		zap.String("service_name", string(name)),
		zap.String("action", req.Action),
		zap.Strings("payload_keys", logging.PayloadKeys(req.Payload)),
		zap.Duration("elapsed", elapsed),
	}

	if err != nil {
		kind := apperrors.KindOf(err)
		d.metrics.RecordEnvelope(string(name), string(kind), elapsed)
		fields = append(fields, zap.String("kind", string(kind)), zap.String("error", logging.SanitizeError(err)))
		switch {
		case apperrors.IsPending(err):
			d.logger.Info("Envelope accepted, completion pending", fields...)
		case apperrors.IsValidation(err):
			d.logger.Warn("Envelope rejected", append(fields, zap.Any("payload", logging.RedactPayload(req.Payload)))...)
		default:
			d.logger.Error("Envelope failed", fields...)
		}
		return nil, err
	}

	d.metrics.RecordEnvelope(string(name), "ok", elapsed)
	d.logger.Info("Envelope handled", fields...)

	return &Envelope{
		RequesterService: req.RequesterService,
		Payload:          req.Payload,
		Response:         response,
	}, nil
}
