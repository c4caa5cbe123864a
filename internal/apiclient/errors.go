package apiclient

import (
	"encoding/json"
	stdErrors "errors"
	"fmt"
	"net/http"
	"strings"

	pkgerrors "github.com/angelmondragon/engagement-dashboard/pkg/errors"
	"github.com/angelmondragon/engagement-dashboard/pkg/types"
)

// Kind classifies where a failure originated.
type Kind string

const (
	KindNetwork   Kind = "network"
	KindServer    Kind = "server"
	KindClient    Kind = "client"
	KindParse     Kind = "parse"
	KindConfig    Kind = "config"
	KindCancelled Kind = "cancelled"
)

// Error is the single failure shape returned by every client call.
type Error struct {
	Message    string         `json:"message"`
	Code       pkgerrors.Code `json:"code"`
	HTTPStatus int            `json:"httpStatus,omitempty"`
	Details    any            `json:"details,omitempty"`
	Kind       Kind           `json:"kind"`

	cause error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.HTTPStatus > 0 {
		return fmt.Sprintf("%s (%d): %s", e.Code, e.HTTPStatus, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Retryable reports whether another attempt may succeed: network failures and 5xx only.
func (e *Error) Retryable() bool {
	if e == nil {
		return false
	}
	return e.Kind == KindNetwork || e.Kind == KindServer
}

// As extracts the client error from err.
func As(err error) *Error {
	var typed *Error
	if stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

func configError(err error) *Error {
	return &Error{
		Message: pkgerrors.MetadataFor(pkgerrors.CodeConfig).PublicMessage,
		Code:    pkgerrors.CodeConfig,
		Details: map[string]any{"originalError": err.Error()},
		Kind:    KindConfig,
		cause:   err,
	}
}

func networkError(err error, timeout bool) *Error {
	details := map[string]any{"originalError": err.Error()}
	if timeout {
		details["timeout"] = true
	}
	return &Error{
		Message: pkgerrors.MetadataFor(pkgerrors.CodeNetwork).PublicMessage,
		Code:    pkgerrors.CodeNetwork,
		Details: details,
		Kind:    KindNetwork,
		cause:   err,
	}
}

func cancelledError(err error) *Error {
	return &Error{
		Message: pkgerrors.MetadataFor(pkgerrors.CodeCancelled).PublicMessage,
		Code:    pkgerrors.CodeCancelled,
		Kind:    KindCancelled,
		cause:   err,
	}
}

func parseError(status int, err error) *Error {
	return &Error{
		Message:    pkgerrors.MetadataFor(pkgerrors.CodeParse).PublicMessage,
		Code:       pkgerrors.CodeParse,
		HTTPStatus: status,
		Details:    map[string]any{"originalError": err.Error()},
		Kind:       KindParse,
		cause:      err,
	}
}

// statusError reads the backend error envelope, falling back to a flat {message, code}
// body and finally to a generic API_ERROR.
func statusError(status int, body []byte) *Error {
	e := &Error{
		Message:    fmt.Sprintf("Request failed with status %d", status),
		Code:       pkgerrors.CodeAPI,
		HTTPStatus: status,
		Kind:       KindClient,
	}
	if status >= http.StatusInternalServerError {
		e.Kind = KindServer
	}

	var envelope types.ErrorEnvelope
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Code != "" {
		applyAPIError(e, envelope.Error)
		return e
	}
	var flat types.APIError
	if err := json.Unmarshal(body, &flat); err == nil {
		applyAPIError(e, flat)
	}
	return e
}

func applyAPIError(e *Error, body types.APIError) {
	if msg := strings.TrimSpace(body.Message); msg != "" {
		e.Message = msg
	}
	if body.Code != "" {
		e.Code = pkgerrors.Code(body.Code)
	}
	e.Details = body.Details
}
