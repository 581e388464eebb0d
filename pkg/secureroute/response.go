package secureroute

import (
	"context"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/iota-uz/saaskit/pkg/composables"
	"github.com/iota-uz/saaskit/pkg/serrors"
)

// Response is what a guarded business function hands back. Exactly one of Err,
// Location or Payload is meaningful, checked in that order.
type Response struct {
	Status   int
	Payload  any
	Location string
	Err      error
	Cookies  []*http.Cookie
}

// Result is the {success, message, error} body used by form actions.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	// Errors carries per-field messages from form validation.
	Errors map[string][]string `json:"errors,omitempty"`
}

func JSON(payload any) Response {
	return Response{Status: http.StatusOK, Payload: payload}
}

func Redirect(location string) Response {
	return Response{Status: http.StatusFound, Location: location}
}

func Success(message string) Response {
	return JSON(Result{Success: true, Message: message})
}

// Failure reports a business failure. The request itself succeeded, so the
// status stays 200 unless overridden with WithStatus.
func Failure(message string) Response {
	return JSON(Result{Success: false, Error: message})
}

// FieldFailure reports a form that did not validate.
func FieldFailure(message string, fields map[string][]string) Response {
	return Response{Status: http.StatusBadRequest, Payload: Result{Success: false, Error: message, Errors: fields}}
}

// Error lets the guard map err onto a status, as it does for its own failures.
func Error(err error) Response {
	return Response{Err: err}
}

func (r Response) WithStatus(status int) Response {
	r.Status = status
	return r
}

func (r Response) WithCookie(c *http.Cookie) Response {
	r.Cookies = append(append([]*http.Cookie(nil), r.Cookies...), c)
	return r
}

// FailureOf reports err as a business failure. Validation errors keep their own
// message, other typed errors keep their HTTP status and anything else is logged
// and answered with fallback.
func FailureOf(ctx context.Context, err error, fallback string) Response {
	var be *serrors.BaseError
	if errors.As(err, &be) {
		if be.Code == serrors.CodeValidationFailed {
			return Failure(be.Message)
		}
		return Error(err)
	}
	composables.UseLoggerOr(ctx, logrus.StandardLogger()).WithError(err).Error(fallback)
	return Failure(fallback)
}
