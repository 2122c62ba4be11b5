package apiclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// FieldError is a single field-level validation failure as returned in a
// 422 error body.
type FieldError struct {
	Loc  []any  `json:"loc"`
	Msg  string `json:"msg"`
	Type string `json:"type"`
}

// ErrorBody is the API error envelope: {"detail": string | []FieldError}
type ErrorBody struct {
	Detail json.RawMessage `json:"detail"`
}

// RequestError wraps a transport-level failure where no response was
// received at all.
type RequestError struct {
	Err error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("request failed: %v", e.Err)
}

func (e *RequestError) Unwrap() error { return e.Err }

// Message returns the user-facing text for a connectivity failure.
func (e *RequestError) Message() string {
	return "Network error. Please check your connection and try again."
}

// APIError is a non-2xx response from the API, carrying the parsed error
// body when one was supplied.
type APIError struct {
	Status int
	Detail string
	Fields []FieldError
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error (status %d): %s", e.Status, e.Message())
}

// IsUnauthorized reports whether the server rejected the credential.
func (e *APIError) IsUnauthorized() bool { return e.Status == http.StatusUnauthorized }

// IsRateLimited reports whether the server throttled the request.
func (e *APIError) IsRateLimited() bool { return e.Status == http.StatusTooManyRequests }

// IsServerError reports whether the failure was on the server side.
func (e *APIError) IsServerError() bool { return e.Status >= 500 }

// IsValidation reports whether the response carried field-level validation
// failures.
func (e *APIError) IsValidation() bool {
	return e.Status == http.StatusUnprocessableEntity && len(e.Fields) > 0
}

// Message maps (status, error body) to a non-empty user-facing string.
// Server-supplied detail wins where it is trustworthy; every status class
// has a fixed fallback.
func (e *APIError) Message() string {
	switch e.Status {
	case http.StatusBadRequest:
		if e.Detail != "" {
			return e.Detail
		}
		return "Invalid request data."
	case http.StatusUnauthorized:
		return "Session expired. Please login again."
	case http.StatusForbidden:
		return "You do not have permission to perform this action."
	case http.StatusNotFound:
		if e.Detail != "" {
			return e.Detail
		}
		return "Resource not found."
	case http.StatusRequestEntityTooLarge:
		return "File size exceeds maximum allowed size."
	case http.StatusUnprocessableEntity:
		if len(e.Fields) > 0 {
			return joinFieldErrors(e.Fields)
		}
		if e.Detail != "" {
			return e.Detail
		}
		return "Validation error."
	case http.StatusTooManyRequests:
		return "Too many requests. Please try again later."
	}
	if e.Status >= 500 {
		return "Server error. Please try again later."
	}
	if e.Detail != "" {
		return e.Detail
	}
	return "An unexpected error occurred. Please try again."
}

func joinFieldErrors(fields []FieldError) string {
	msgs := make([]string, 0, len(fields))
	for _, f := range fields {
		if f.Msg != "" {
			msgs = append(msgs, f.Msg)
		}
	}
	if len(msgs) == 0 {
		return "Validation error."
	}
	return strings.Join(msgs, ", ")
}

// ErrorMessage derives a user-facing message from any error produced by the
// client, falling back to the supplied text for non-client errors.
func ErrorMessage(err error, fallback string) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message()
	}
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.Message()
	}
	return fallback
}

// newAPIError builds an APIError from a response status and raw body. The
// detail field may be either a plain string or a list of field errors;
// anything unparseable is ignored and the status fallback applies.
func newAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{Status: status}

	var envelope ErrorBody
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Detail) == 0 {
		return apiErr
	}

	var detail string
	if err := json.Unmarshal(envelope.Detail, &detail); err == nil {
		apiErr.Detail = detail
		return apiErr
	}

	var fields []FieldError
	if err := json.Unmarshal(envelope.Detail, &fields); err == nil {
		apiErr.Fields = fields
	}

	return apiErr
}
