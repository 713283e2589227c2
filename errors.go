package main

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies a workflow failure so callers can branch on it
// without string matching.
type ErrorKind int

const (
	// ErrKindValidation marks input rejected before any browser activity.
	ErrKindValidation ErrorKind = iota
	// ErrKindSessionExpired marks an authentication failure, either a 401
	// from an endpoint or an unexpected post-navigation redirect.
	ErrKindSessionExpired
	// ErrKindRateLimited marks a 429 from an endpoint; the batch runner
	// retries these after a cooldown.
	ErrKindRateLimited
	// ErrKindRemote marks any other non-2xx endpoint response.
	ErrKindRemote
	// ErrKindTimeout marks a response wait that hit the operation timeout.
	ErrKindTimeout
	// ErrKindBrowser marks a failed browser primitive (navigate, fill, click).
	ErrKindBrowser
)

const (
	sessionExpiredMessage = "Your session has expired. Please log in again."
	rateLimitedMessage    = "The portal is rate limiting requests. Waiting before retrying."
	timeoutMessage        = "Timed out waiting for the portal to respond. Please try again."
)

// WorkflowError is the single failure value returned by every workflow.
// Message is always safe to show to the user as-is.
type WorkflowError struct {
	Kind    ErrorKind
	Status  int
	Message string
	cause   error
}

func (e *WorkflowError) Error() string {
	return e.Message
}

func (e *WorkflowError) Unwrap() error {
	return e.cause
}

func validationErr(format string, args ...interface{}) *WorkflowError {
	return &WorkflowError{Kind: ErrKindValidation, Message: fmt.Sprintf(format, args...)}
}

func sessionExpiredErr() *WorkflowError {
	return &WorkflowError{Kind: ErrKindSessionExpired, Message: sessionExpiredMessage}
}

func timeoutErr() *WorkflowError {
	return &WorkflowError{Kind: ErrKindTimeout, Message: timeoutMessage}
}

// browserErr wraps a failed browser primitive with the step it belonged to.
func browserErr(step string, err error) *WorkflowError {
	return &WorkflowError{
		Kind:    ErrKindBrowser,
		Message: fmt.Sprintf("Browser step %q failed: %v", step, err),
		cause:   err,
	}
}

// classifyStatus maps a non-2xx endpoint status to a user-facing error.
// 401 and 429 are shared across all workflows; other client errors go
// through the per-workflow message table.
func classifyStatus(status int, messages map[int]string) *WorkflowError {
	switch status {
	case http.StatusUnauthorized:
		return &WorkflowError{Kind: ErrKindSessionExpired, Status: status, Message: sessionExpiredMessage}
	case http.StatusTooManyRequests:
		return &WorkflowError{Kind: ErrKindRateLimited, Status: status, Message: rateLimitedMessage}
	}
	if msg, ok := messages[status]; ok {
		return &WorkflowError{Kind: ErrKindRemote, Status: status, Message: msg}
	}
	return &WorkflowError{
		Kind:    ErrKindRemote,
		Status:  status,
		Message: fmt.Sprintf("The portal rejected the request (HTTP %d). Please try again later.", status),
	}
}

// coerceWorkflowErr guarantees the caller hands back a classified error
// value, even for failures raised below the workflow layer.
func coerceWorkflowErr(err error) *WorkflowError {
	var wfErr *WorkflowError
	if errors.As(err, &wfErr) {
		return wfErr
	}
	return &WorkflowError{
		Kind:    ErrKindBrowser,
		Message: fmt.Sprintf("Unexpected browser failure: %v", err),
		cause:   err,
	}
}

func errorKind(err error) (ErrorKind, bool) {
	var wfErr *WorkflowError
	if errors.As(err, &wfErr) {
		return wfErr.Kind, true
	}
	return 0, false
}

func isRateLimited(err error) bool {
	kind, ok := errorKind(err)
	return ok && kind == ErrKindRateLimited
}

func isSessionExpired(err error) bool {
	kind, ok := errorKind(err)
	return ok && kind == ErrKindSessionExpired
}
