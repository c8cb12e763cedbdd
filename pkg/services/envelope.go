package services

import (
	"encoding/json"
	"strings"

	"github.com/skillforge-io/course-builder/pkg/apperrors"
	"github.com/skillforge-io/course-builder/pkg/jsonutil"
)

// DispatchRequest is one decoded inbound envelope.
type DispatchRequest struct {
	// ServiceName is the routing key sent with the envelope.
	ServiceName      string
	RequesterService string
	RequestID        string
	Payload          map[string]any
	// Template is the response contract. An empty template means nothing is
	// expected back.
	Template *jsonutil.Object
	Action   string
}

// Envelope is the reply to a dispatched request.
type Envelope struct {
	RequesterService string           `json:"requester_service"`
	Payload          map[string]any   `json:"payload"`
	Response         *jsonutil.Object `json:"response"`
}

var templateKeys = []string{"response", "response_template", "responseTemplate"}

// ParseEnvelope decodes the payload form field. It accepts the full envelope
// {requester_service, payload, response|response_template, action}, where payload
// may itself be a JSON-encoded string, or a bare payload object carrying its
// template under response_template.
func ParseEnvelope(serviceName string, raw []byte) (*DispatchRequest, error) {
	if strings.TrimSpace(string(raw)) == "" {
		return nil, &apperrors.InvalidPayloadError{Reason: "payload is empty"}
	}

	doc, err := jsonutil.ParseObject(raw)
	if err != nil {
		return nil, &apperrors.InvalidPayloadError{Reason: "payload is not a JSON object"}
	}

	req := &DispatchRequest{
		ServiceName:      serviceName,
		RequesterService: stringField(doc, "requester_service", "requesterService"),
		Action:           stringField(doc, "action"),
	}
	if req.RequesterService == "" {
		req.RequesterService = serviceName
	}

	body := doc
	if inner, ok := doc.Get("payload"); ok {
		switch v := inner.(type) {
		case *jsonutil.Object:
			body = v
		case string:
			parsed, err := jsonutil.ParseObject([]byte(v))
			if err != nil {
				return nil, &apperrors.InvalidPayloadError{Reason: "payload field is not a JSON object"}
			}
			body = parsed
		case nil:
			body = jsonutil.NewObject()
		default:
			return nil, &apperrors.InvalidPayloadError{Reason: "payload field is not a JSON object"}
		}
	}

	template, err := findTemplate(doc, body)
	if err != nil {
		return nil, err
	}
	req.Template = template

	payload := body.ToMap()
	for _, k := range templateKeys {
		delete(payload, k)
	}
	if req.Action == "" {
		if a, ok := payload["action"].(string); ok {
			req.Action = a
		}
	}
	req.Payload = payload

	return req, nil
}

// findTemplate looks for the template on the envelope first, then inside the payload.
// A missing template yields nil; one that is not an object is an error.
func findTemplate(objs ...*jsonutil.Object) (*jsonutil.Object, error) {
	for _, obj := range objs {
		for _, k := range templateKeys {
			v, ok := obj.Get(k)
			if !ok {
				continue
			}
			switch t := v.(type) {
			case *jsonutil.Object:
				return t, nil
			case string:
				parsed, err := jsonutil.ParseObject([]byte(t))
				if err != nil {
					return nil, &apperrors.InvalidTemplateError{Reason: "template must be a JSON object"}
				}
				return parsed, nil
			case nil:
				continue
			default:
				return nil, &apperrors.InvalidTemplateError{Reason: "template must be a JSON object"}
			}
		}
	}
	return nil, nil
}

func stringField(obj *jsonutil.Object, keys ...string) string {
	for _, k := range keys {
		if v, ok := obj.Get(k); ok {
			if s, isString := v.(string); isString && s != "" {
				return s
			}
		}
	}
	return ""
}

// MarshalResponse renders an envelope reply.
func MarshalResponse(env *Envelope) ([]byte, error) {
	return json.Marshal(env)
}
