package main

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyStatus(t *testing.T) {
	table := map[int]string{400: "bad input guidance", 404: "not found guidance"}

	tests := []struct {
		name     string
		status   int
		wantKind ErrorKind
		wantMsg  string
	}{
		{"401 is session expiry everywhere", 401, ErrKindSessionExpired, sessionExpiredMessage},
		{"429 is rate limiting everywhere", 429, ErrKindRateLimited, rateLimitedMessage},
		{"400 uses the workflow table", 400, ErrKindRemote, "bad input guidance"},
		{"404 uses the workflow table", 404, ErrKindRemote, "not found guidance"},
		{"untabled status gets generic guidance", 503, ErrKindRemote, "The portal rejected the request (HTTP 503). Please try again later."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classifyStatus(tt.status, table)
			assert.Equal(t, tt.wantKind, err.Kind)
			assert.Equal(t, tt.status, err.Status)
			assert.Equal(t, tt.wantMsg, err.Message)
		})
	}
}

func TestCoerceWorkflowErr(t *testing.T) {
	t.Run("passes a workflow error through", func(t *testing.T) {
		original := sessionExpiredErr()
		assert.Same(t, original, coerceWorkflowErr(original))
	})

	t.Run("unwraps a wrapped workflow error", func(t *testing.T) {
		original := timeoutErr()
		wrapped := fmt.Errorf("while waiting: %w", original)
		assert.Same(t, original, coerceWorkflowErr(wrapped))
	})

	t.Run("wraps an arbitrary error as a browser failure", func(t *testing.T) {
		cause := errors.New("websocket closed")
		err := coerceWorkflowErr(cause)
		assert.Equal(t, ErrKindBrowser, err.Kind)
		assert.ErrorIs(t, err, cause)
	})
}

func TestWorkflowErrorUnwrap(t *testing.T) {
	cause := errors.New("element not found")
	err := browserErr("fill phone number", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "fill phone number")

	kind, ok := errorKind(err)
	require.True(t, ok)
	assert.Equal(t, ErrKindBrowser, kind)
}

func TestErrorKindHelpers(t *testing.T) {
	assert.True(t, isRateLimited(classifyStatus(429, nil)))
	assert.False(t, isRateLimited(classifyStatus(500, nil)))
	assert.True(t, isSessionExpired(sessionExpiredErr()))
	assert.False(t, isSessionExpired(timeoutErr()))

	_, ok := errorKind(errors.New("plain error"))
	assert.False(t, ok)
}
