package serrors

import (
	"errors"
	"net/http"
)

const (
	CodeUnauthenticated      = "UNAUTHENTICATED"
	CodeNoActiveOrganization = "NO_ACTIVE_ORGANIZATION"
	CodeNotAMember           = "NOT_A_MEMBER"
	CodeForbidden            = "FORBIDDEN"
	CodeValidationFailed     = "VALIDATION_FAILED"
	CodeNotFound             = "NOT_FOUND"
	CodeFileNotSupported     = "FILE_NOT_SUPPORTED"
	CodeInternal             = "INTERNAL_SERVER_ERROR"
)

// BaseError is the typed error carried through the request pipeline.
// Two BaseErrors are considered equal by errors.Is when their codes match.
type BaseError struct {
	Code         string            `json:"code"`
	Message      string            `json:"message"`
	LocaleKey    string            `json:"locale_key,omitempty"`
	TemplateData map[string]string `json:"template_data,omitempty"`
	Status       int               `json:"-"`
}

func NewError(code, message, localeKey string) *BaseError {
	return &BaseError{
		Code:      code,
		Message:   message,
		LocaleKey: localeKey,
		Status:    statusFor(code),
	}
}

func (e *BaseError) Error() string {
	return e.Message
}

func (e *BaseError) Is(target error) bool {
	var other *BaseError
	if !errors.As(target, &other) {
		return false
	}
	return e.Code == other.Code
}

// WithTemplateData returns a copy of the error carrying data.
func (e *BaseError) WithTemplateData(data map[string]string) *BaseError {
	cp := *e
	cp.TemplateData = data
	return &cp
}

func (e *BaseError) WithMessage(message string) *BaseError {
	cp := *e
	cp.Message = message
	return &cp
}

func (e *BaseError) WithStatus(status int) *BaseError {
	cp := *e
	cp.Status = status
	return &cp
}

// StatusOf maps err onto an HTTP status, defaulting to 500 for untyped errors.
func StatusOf(err error) int {
	var be *BaseError
	if errors.As(err, &be) && be.Status != 0 {
		return be.Status
	}
	return http.StatusInternalServerError
}

// CodeOf returns the error code of err or CodeInternal.
func CodeOf(err error) string {
	var be *BaseError
	if errors.As(err, &be) {
		return be.Code
	}
	return CodeInternal
}

func statusFor(code string) int {
	switch code {
	case CodeUnauthenticated:
		return http.StatusUnauthorized
	case CodeNoActiveOrganization, CodeNotAMember, CodeValidationFailed, CodeFileNotSupported:
		return http.StatusBadRequest
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
