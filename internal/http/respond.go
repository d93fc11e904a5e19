package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fjod/go_pos/internal/backend"
	"github.com/fjod/go_pos/internal/dispatch"
	"github.com/fjod/go_pos/internal/domain"
	"go.uber.org/zap"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// invalid input rather than a state conflict
var badRequest = []error{
	domain.ErrInvalidIdentity,
	domain.ErrInvalidAmount,
	domain.ErrMissingName,
	domain.ErrUnknownCategory,
}

func respondJSON(w http.ResponseWriter, logger *zap.Logger, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Warn("failed to encode response", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, logger *zap.Logger, status int, code, message string) {
	respondJSON(w, logger, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// handleError converts terminal errors to HTTP status codes.
func handleError(w http.ResponseWriter, logger *zap.Logger, err error) {
	var httpStatus int
	var code string
	message := err.Error()

	switch {
	case errors.Is(err, domain.ErrUnknownProduct):
		httpStatus = http.StatusNotFound
		code = "not_found"
	case isBadRequest(err):
		httpStatus = http.StatusBadRequest
		code = "invalid_argument"
	case errors.Is(err, domain.ErrPrecondition):
		httpStatus = http.StatusConflict
		code = string(domain.KindPrecondition)
	case errors.Is(err, domain.ErrSessionExpired):
		httpStatus = http.StatusConflict
		code = string(domain.KindSessionExpired)
	case errors.Is(err, domain.ErrRejected):
		httpStatus = http.StatusBadGateway
		code = string(domain.KindRejected)
		message = backend.Message(err)
	case errors.Is(err, domain.ErrTransport):
		httpStatus = http.StatusServiceUnavailable
		code = string(domain.KindTransport)
		message = backend.Message(err)
	case errors.Is(err, dispatch.ErrLoopStopped):
		httpStatus = http.StatusServiceUnavailable
		code = "service_unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		httpStatus = http.StatusGatewayTimeout
		code = "timeout"
	default:
		logger.Error("unexpected error", zap.Error(err))
		httpStatus = http.StatusInternalServerError
		code = "internal_error"
		message = "internal server error"
	}

	respondJSON(w, logger, httpStatus, ErrorResponse{
		Error:   message,
		Code:    code,
		Details: detailsOf(err, message),
	})
}

func isBadRequest(err error) bool {
	for _, target := range badRequest {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// detailsOf keeps the full chain when the headline message dropped part of it.
func detailsOf(err error, message string) string {
	if full := err.Error(); full != message && message != "internal server error" {
		return full
	}
	return ""
}
