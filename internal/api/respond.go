package api

import (
	"encoding/json"
	"net/http"

	"codeberg.org/mutker/irrigatectl/internal/errors"
)

type errorResponse struct {
	RequestID string `json:"requestId,omitempty"`
	Code      string `json:"code,omitempty"`
	Message   string `json:"message"`
}

func respondJSON(w http.ResponseWriter, _ *http.Request, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data == nil {
		return
	}
	// Headers are already sent; an encoding error can only be dropped.
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	respondJSON(w, r, status, errorResponse{
		RequestID: RequestID(r.Context()),
		Message:   msg,
	})
}

// respondCodedError maps domain error codes to HTTP statuses.
func respondCodedError(w http.ResponseWriter, r *http.Request, err error) {
	code := errors.CodeOf(err)

	status := http.StatusInternalServerError
	switch code {
	case errors.ErrInvalidState:
		status = http.StatusConflict
	case errors.ErrTimeout:
		status = http.StatusGatewayTimeout
	case errors.ErrInvalidArgument:
		status = http.StatusBadRequest
	case errors.ErrSourceUnavailable, errors.ErrUnavailable:
		status = http.StatusServiceUnavailable
	}

	respondJSON(w, r, status, errorResponse{
		RequestID: RequestID(r.Context()),
		Code:      string(code),
		Message:   err.Error(),
	})
}
