// Package httpapi writes the JSON bodies shared by API endpoints and guard
// failures.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/iota-uz/saaskit/pkg/serrors"
)

// RequestIDHeader is set on every response by the logging middleware.
const RequestIDHeader = "X-Request-Id"

// ErrorEnvelope is the body of every JSON error.
type ErrorEnvelope struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Meta    map[string]string `json:"meta,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, payload any) error {
	if w == nil {
		return nil
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if payload == nil {
		return nil
	}
	return json.NewEncoder(w).Encode(payload)
}

func WriteError(w http.ResponseWriter, status int, code, message string, meta map[string]string) error {
	return WriteJSON(w, status, &ErrorEnvelope{
		Code:    code,
		Message: message,
		Meta:    meta,
	})
}

// Fail writes an envelope tagged with the request id already on the response.
func Fail(w http.ResponseWriter, status int, code, message string) error {
	var meta map[string]string
	if id := w.Header().Get(RequestIDHeader); id != "" {
		meta = map[string]string{"request_id": id}
	}
	return WriteError(w, status, code, message, meta)
}

// FailWith writes err as an envelope. A *serrors.BaseError keeps its code,
// status and message; anything else is a generic 500.
func FailWith(w http.ResponseWriter, err error) error {
	var be *serrors.BaseError
	if errors.As(err, &be) {
		return Fail(w, serrors.StatusOf(err), be.Code, be.Message)
	}
	return Fail(w, http.StatusInternalServerError, serrors.CodeInternal, "internal server error")
}
