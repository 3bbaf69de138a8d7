package api

import (
	"encoding/json"
	"errors"
	"net/http"

	apperrors "github.com/Taichi-iskw/yt-library/internal/errors"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Path    string `json:"path,omitempty"`
}

// errorBody converts err to its wire form; nil stays nil
func errorBody(err error) *ErrorResponse {
	if err == nil {
		return nil
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return &ErrorResponse{Code: appErr.Code, Message: appErr.Message, Path: appErr.Path}
	}
	return &ErrorResponse{Code: apperrors.CodeInternal, Message: err.Error()}
}

// statusFor maps an error code to its HTTP status
func statusFor(err error) int {
	switch apperrors.CodeOf(err) {
	case apperrors.CodeParse:
		return http.StatusUnprocessableEntity
	case apperrors.CodeInvalidArg:
		return http.StatusBadRequest
	case apperrors.CodeNotFound:
		return http.StatusNotFound
	case apperrors.CodeTransient:
		return http.StatusServiceUnavailable
	case apperrors.CodeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.log.WithError(err).Error("Failed to encode response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.WithError(err).Error("Request failed")
	}
	h.writeJSON(w, status, errorBody(err))
}
