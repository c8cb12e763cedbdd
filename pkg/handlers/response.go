package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/skillforge-io/course-builder/pkg/apperrors"
)

// PendingResponse is returned with 202 when a build cannot complete yet.
type PendingResponse struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

// ErrorResponse writes a JSON error response and returns any encoding error.
func ErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(map[string]string{
		"error":   errorCode,
		"message": message,
	})
}

// WriteJSON writes a JSON response and returns any encoding error.
func WriteJSON(w http.ResponseWriter, statusCode int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	if statusCode != http.StatusOK {
		w.WriteHeader(statusCode)
	}
	return json.NewEncoder(w).Encode(data)
}

// AppErrorResponse writes err using its kind and public message.
// A pending outcome is written as 202 {status: "pending", reason}.
func AppErrorResponse(w http.ResponseWriter, err error) error {
	var pending *apperrors.PendingCourseCreationError
	if errors.As(err, &pending) {
		return WriteJSON(w, http.StatusAccepted, PendingResponse{Status: "pending", Reason: pending.Reason})
	}

	kind := apperrors.KindOf(err)
	return ErrorResponse(w, StatusForKind(kind), string(kind), apperrors.PublicMessage(err))
}

// StatusForKind maps an error kind to its HTTP status.
func StatusForKind(kind apperrors.Kind) int {
	switch kind {
	case apperrors.KindUnsupportedService, apperrors.KindInvalidTemplate,
		apperrors.KindInvalidPayload, apperrors.KindQueryRejected:
		return http.StatusBadRequest
	case apperrors.KindPending:
		return http.StatusAccepted
	case apperrors.KindIncompleteFill:
		return http.StatusUnprocessableEntity
	case apperrors.KindUpstream:
		return http.StatusBadGateway
	case apperrors.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
