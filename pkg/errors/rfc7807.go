// Package errors provides the error kinds shared by the matching core and
// their RFC 7807 Problem Details rendering for the HTTP layer.
package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Standard error functions
var (
	Is = errors.Is
	As = errors.As
)

// Error is a custom error type carrying a kind that survives wrapping.
type Error struct {
	// Kind is the returned error type
	Kind string `json:"kind"`
	// Message is the human readable string that indicate the error
	Message string `json:"message"`

	cause error
}

var _ error = (*Error)(nil)

// Kinds used across the module. Compare with errors.Is.
var (
	ErrConflict                  = NewWithKind("conflict")
	ErrNotFound                  = NewWithKind("not_found")
	ErrInsufficientOpportunities = NewWithKind("insufficient_opportunities")
	ErrInvalidStateTransition    = NewWithKind("invalid_state_transition")
	ErrPersistenceFailure        = NewWithKind("persistence_failure")
	ErrInvalidArgument           = NewWithKind("invalid_argument")
)

func NewWithKind(kind string) *Error {
	return &Error{Kind: kind}
}

// Error implements error
func (e *Error) Error() string {
	str := e.Kind
	if e.Message != "" {
		str += ": " + e.Message
	}
	if e.cause != nil {
		str += fmt.Sprintf(" (%s)", e.cause)
	}
	return str
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Wrap returns a copy of the error with the given cause
func (e *Error) Wrap(cause error) *Error {
	err := *e
	err.cause = cause
	return &err
}

// Explain makes a copy of the error with given message
func (e *Error) Explain(message string, args ...any) *Error {
	err := *e
	err.Message = fmt.Sprintf(message, args...)
	return &err
}

// Is implements the needed interface for errors.Is.
// Two *Error values match when their kinds are equal.
func (e *Error) Is(target error) bool {
	if e == nil {
		return target == nil
	}
	if other, ok := target.(*Error); ok {
		return other.Kind == e.Kind
	}
	if e.cause != nil {
		return Is(e.cause, target)
	}
	return false
}

// Problem type URIs
const (
	TypeValidationError           = "https://codemeet.app/problems/validation-error"
	TypeUnauthorized              = "https://codemeet.app/problems/unauthorized"
	TypeNotFound                  = "https://codemeet.app/problems/not-found"
	TypeConflict                  = "https://codemeet.app/problems/conflict"
	TypeInsufficientOpportunities = "https://codemeet.app/problems/insufficient-opportunities"
	TypeInternalError             = "https://codemeet.app/problems/internal-error"
)

// Problem titles
const (
	TitleValidationError           = "Validation Error"
	TitleUnauthorized              = "Unauthorized"
	TitleNotFound                  = "Not Found"
	TitleConflict                  = "Conflict"
	TitleInsufficientOpportunities = "Insufficient Opportunities"
	TitleInternalError             = "Internal Server Error"
)

// ValidationError represents a validation error for RFC 7807
type ValidationError struct {
	Field   string      `json:"field"`
	Value   interface{} `json:"value,omitempty"`
	Message string      `json:"message"`
	Code    string      `json:"code,omitempty"`
}

// ProblemDetails represents an RFC 7807 Problem Details response
type ProblemDetails struct {
	Type     string                 `json:"type"`
	Title    string                 `json:"title"`
	Status   int                    `json:"status"`
	Detail   string                 `json:"detail,omitempty"`
	Instance string                 `json:"instance,omitempty"`
	TraceID  string                 `json:"trace_id,omitempty"`
	Errors   []ValidationError      `json:"errors,omitempty"`
	Extra    map[string]interface{} `json:"-"`
}

// Error implements the error interface
func (p *ProblemDetails) Error() string {
	return p.Detail
}

// WithTraceID adds a trace ID to the problem details
func (p *ProblemDetails) WithTraceID(traceID string) *ProblemDetails {
	p.TraceID = traceID
	return p
}

// WithValidationErrors adds validation errors to the problem details
func (p *ProblemDetails) WithValidationErrors(errors []ValidationError) *ProblemDetails {
	p.Errors = errors
	return p
}

// WithExtra adds extra fields to the problem details (they will be serialized at the top level)
func (p *ProblemDetails) WithExtra(key string, value interface{}) *ProblemDetails {
	if p.Extra == nil {
		p.Extra = make(map[string]interface{})
	}
	p.Extra[key] = value
	return p
}

// MarshalJSON implements custom JSON marshaling to include extra fields at the top level
func (p *ProblemDetails) MarshalJSON() ([]byte, error) {
	result := make(map[string]interface{})
	result["type"] = p.Type
	result["title"] = p.Title
	result["status"] = p.Status
	if p.Detail != "" {
		result["detail"] = p.Detail
	}
	if p.Instance != "" {
		result["instance"] = p.Instance
	}
	if p.TraceID != "" {
		result["trace_id"] = p.TraceID
	}
	if len(p.Errors) > 0 {
		result["errors"] = p.Errors
	}
	for k, v := range p.Extra {
		result[k] = v
	}

	return json.Marshal(result)
}

// NewProblemDetails creates a generic problem details with all fields
func NewProblemDetails(problemType, title string, status int, detail, instance string) *ProblemDetails {
	return &ProblemDetails{
		Type:     problemType,
		Title:    title,
		Status:   status,
		Detail:   detail,
		Instance: instance,
	}
}

// NewValidationError creates a validation error problem
func NewValidationError(detail, instance string) *ProblemDetails {
	return NewProblemDetails(TypeValidationError, TitleValidationError, http.StatusBadRequest, detail, instance)
}

// NewUnauthorizedError creates an unauthorized error problem
func NewUnauthorizedError(detail, instance string) *ProblemDetails {
	return NewProblemDetails(TypeUnauthorized, TitleUnauthorized, http.StatusUnauthorized, detail, instance)
}

// NewNotFoundError creates a not found error problem
func NewNotFoundError(detail, instance string) *ProblemDetails {
	return NewProblemDetails(TypeNotFound, TitleNotFound, http.StatusNotFound, detail, instance)
}

// NewConflictError creates a conflict error problem
func NewConflictError(detail, instance string) *ProblemDetails {
	return NewProblemDetails(TypeConflict, TitleConflict, http.StatusConflict, detail, instance)
}

// NewInsufficientOpportunitiesError creates an insufficient opportunities problem
func NewInsufficientOpportunitiesError(detail, instance string) *ProblemDetails {
	return NewProblemDetails(TypeInsufficientOpportunities, TitleInsufficientOpportunities, http.StatusUnprocessableEntity, detail, instance)
}

// NewInternalError creates an internal server error problem
func NewInternalError(detail, instance string) *ProblemDetails {
	return NewProblemDetails(TypeInternalError, TitleInternalError, http.StatusInternalServerError, detail, instance)
}

// FromError maps an error kind onto its problem details.
// Unknown errors become 500 without leaking their message.
func FromError(err error, instance string) *ProblemDetails {
	var pd *ProblemDetails
	if As(err, &pd) {
		return pd
	}

	var e *Error
	detail := "internal error"
	if As(err, &e) && e.Message != "" {
		detail = e.Message
	}

	switch {
	case Is(err, ErrConflict):
		return NewConflictError(detail, instance)
	case Is(err, ErrNotFound):
		return NewNotFoundError(detail, instance)
	case Is(err, ErrInsufficientOpportunities):
		return NewInsufficientOpportunitiesError(detail, instance)
	case Is(err, ErrInvalidArgument):
		return NewValidationError(detail, instance)
	default:
		return NewInternalError("internal error", instance)
	}
}
