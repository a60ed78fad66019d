package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/templui/reelstore/internal/convert"
	"github.com/templui/reelstore/internal/ctxkeys"
	"github.com/templui/reelstore/internal/service"
	"github.com/templui/reelstore/internal/validation"
)

// statusClientClosedRequest is nginx's status for a caller that went away
// before the response was ready.
const statusClientClosedRequest = 499

type errorItem struct {
	Param string `json:"param"`
	Msg   string `json:"msg"`
}

type errorBody struct {
	Errors []errorItem `json:"errors"`
}

// WriteJSON writes v with the given status
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		slog.Warn("failed to encode response", "error", err)
	}
}

// WriteError writes the JSON error body used by every endpoint
func WriteError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	WriteJSON(w, status, errorBody{Errors: []errorItem{{Param: "Server", Msg: msg}}})
}

// writeServiceError maps a service error onto a status code and message.
// Internal errors are logged and answered with a generic message. Abandoned
// requests are logged at debug level only.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusFor(err)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		slog.Debug("request abandoned",
			"error", err,
			"status", status,
			"path", r.URL.Path,
			"request_id", ctxkeys.RequestID(r.Context()),
		)
	} else if status >= http.StatusInternalServerError {
		slog.Error("request failed",
			"error", err,
			"status", status,
			"path", r.URL.Path,
			"request_id", ctxkeys.RequestID(r.Context()),
		)
	}
	WriteError(w, r, status, msg)
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, context.Canceled):
		return statusClientClosedRequest, "Request canceled."
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "Request timed out."
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, "Not found."
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden, "Access forbidden."
	case errors.Is(err, service.ErrConflict):
		return http.StatusConflict, err.Error()
	case errors.Is(err, service.ErrUnauthorized), errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized, "Invalid credentials."
	case errors.Is(err, convert.ErrConversionFailed):
		return http.StatusBadGateway, err.Error()
	case errors.Is(err, validation.ErrUnsupportedType), errors.Is(err, validation.ErrExtensionMismatch):
		return http.StatusUnsupportedMediaType, err.Error()
	case errors.Is(err, validation.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge, err.Error()
	case errors.Is(err, service.ErrUnsupportedFormat), errors.Is(err, service.ErrInvalidUpload):
		return http.StatusBadRequest, err.Error()
	}
	return http.StatusInternalServerError, "Internal server error."
}

func NotFound(w http.ResponseWriter, r *http.Request) {
	WriteError(w, r, http.StatusNotFound, "Not found.")
}
