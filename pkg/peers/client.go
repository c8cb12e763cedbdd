// Package peers exchanges envelopes with the neighbouring microservices.
//
// Every peer speaks the same protocol this service exposes: a form-encoded POST
// with a serviceName field and a payload field holding the JSON envelope
// {requester_service, payload, response, action}. The reply carries the filled
// response template.
package peers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/skillforge-io/course-builder/pkg/logging"
)

// DefaultPath is the envelope endpoint every peer exposes.
const DefaultPath = "/api/fill-content-metrics"

// DefaultTimeout bounds a single peer exchange.
const DefaultTimeout = 30 * time.Second

// Envelope is the JSON document sent in the payload form field.
type Envelope struct {
	RequesterService string         `json:"requester_service"`
	Payload          map[string]any `json:"payload"`
	Response         map[string]any `json:"response"`
	Action           string         `json:"action,omitempty"`
}

// Config configures a peer client.
type Config struct {
	// Service is the peer's service name, sent as serviceName.
	Service string
	BaseURL string
	// Path defaults to DefaultPath.
	Path    string
	Timeout time.Duration
	// Requester is this service's own name, sent as requester_service.
	Requester string
}

// Client posts envelopes to one peer service.
type Client struct {
	cfg    Config
	rest   *resty.Client
	logger *zap.Logger
}

// NewClient creates a client for one peer.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.Path == "" {
		cfg.Path = DefaultPath
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	rest := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json")

	return &Client{
		cfg:    cfg,
		rest:   rest,
		logger: logger.Named("peer").With(zap.String("peer", cfg.Service)),
	}
}

// Service returns the peer's service name.
func (c *Client) Service() string {
	return c.cfg.Service
}

// Exchange sends payload with the response template and returns the filled template.
// Failures are *PeerError.
func (c *Client) Exchange(ctx context.Context, action string, payload, template map[string]any) (map[string]any, error) {
	if c.cfg.BaseURL == "" {
		return nil, &PeerError{Service: c.cfg.Service, Err: ErrNotConfigured}
	}
	if template == nil {
		template = map[string]any{}
	}

	body, err := json.Marshal(Envelope{
		RequesterService: c.cfg.Requester,
		Payload:          payload,
		Response:         template,
		Action:           action,
	})
	if err != nil {
		return nil, &PeerError{Service: c.cfg.Service, Err: fmt.Errorf("encode envelope: %w", err)}
	}

	start := time.Now()
	resp, err := c.rest.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"serviceName": c.cfg.Requester,
			"payload":     string(body),
		}).
		Post(c.cfg.Path)
	if err != nil {
		c.logger.Warn("Peer exchange failed",
			zap.String("action", action),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("error", logging.SanitizeError(err)))
		return nil, &PeerError{Service: c.cfg.Service, Err: err}
	}

	c.logger.Debug("Peer exchange completed",
		zap.String("action", action),
		zap.Int("status", resp.StatusCode()),
		zap.Duration("elapsed", time.Since(start)))

	if resp.StatusCode() != http.StatusOK {
		return nil, &PeerError{
			Service:    c.cfg.Service,
			StatusCode: resp.StatusCode(),
			Err:        errors.New(logging.TruncateString(resp.String(), 200)),
		}
	}

	filled, err := parseReply(resp.Body())
	if err != nil {
		return nil, &PeerError{Service: c.cfg.Service, StatusCode: resp.StatusCode(), Err: err}
	}
	return filled, nil
}

// parseReply extracts the filled template from a reply. Peers answer with
// {"response": {...}}, with the full envelope re-encoded in a payload string,
// or with the bare filled object.
func parseReply(body []byte) (map[string]any, error) {
	var reply map[string]any
	if err := json.Unmarshal(body, &reply); err != nil {
		return nil, fmt.Errorf("decode reply: %w", err)
	}
	if reply == nil {
		return map[string]any{}, nil
	}

	if resp, ok := reply["response"].(map[string]any); ok {
		return resp, nil
	}
	if data, ok := reply["data"].(map[string]any); ok {
		if resp, ok := data["response"].(map[string]any); ok {
			return resp, nil
		}
	}
	if s, ok := reply["payload"].(string); ok {
		var inner map[string]any
		if err := json.Unmarshal([]byte(s), &inner); err == nil {
			if resp, ok := inner["response"].(map[string]any); ok {
				return resp, nil
			}
			return inner, nil
		}
	}
	return reply, nil
}
