package errors

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentbridge/agentbridge/internal/server/middleware"
)

func TestHTTPStatusFromCode(t *testing.T) {
	tests := map[string]int{
		CodeRateLimited:     http.StatusTooManyRequests,
		CodeUnauthorized:    http.StatusUnauthorized,
		CodeInvalidJSON:     http.StatusBadRequest,
		CodeInvalidInput:    http.StatusBadRequest,
		CodePayloadTooLarge: http.StatusRequestEntityTooLarge,
		CodeNotFound:        http.StatusNotFound,
		CodeAgentFailed:     http.StatusInternalServerError,
		CodeAgentTimeout:    http.StatusInternalServerError,
		CodeInternal:        http.StatusInternalServerError,
		"SOMETHING_ELSE":    http.StatusInternalServerError,
	}
	for code, want := range tests {
		assert.Equal(t, want, HTTPStatusFromCode(code), code)
	}
}

func TestRespondWithRateLimited(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/ask", nil)

	RespondWithError(rec, req, NewRateLimitedError(42))

	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.JSONEq(t, `{"error":"Too many requests","retryAfter":42}`, rec.Body.String())
}

func TestRespondWithAgentFailureHidesDiagnostics(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/ask", nil)
	ctx := context.WithValue(req.Context(), middleware.RequestIDContextKey, "req-1")

	envelope := WrapAgentFailure(ctx, stderrors.New("clawdbot exited with code 1"), false, map[string]interface{}{
		"exit_code": 1,
		"stderr":    "token=abc123 at /home/me",
	})
	assert.Equal(t, "req-1", envelope.CorrelationID)

	RespondWithError(rec, req.WithContext(ctx), envelope)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Internal server error"}`, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "abc123")
}

func TestRespondWithPlainErrorIsInternal(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	RespondWithError(rec, req, stderrors.New("boom: /etc/secret"))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	var body HTTPErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, MessageInternal, body.Error)
	assert.Nil(t, body.RetryAfter)
}

func TestRespondWithInvalidInput(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondWithError(rec, nil, NewInvalidInputError("Message cannot be empty"))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"error":"Message cannot be empty"}`, rec.Body.String())
}

func TestEnsureEnvelope(t *testing.T) {
	assert.Equal(t, CodeInternal, EnsureEnvelope(nil).Code)

	original := NewUnauthorizedError()
	assert.Same(t, original, EnsureEnvelope(original))

	wrapped := EnsureEnvelope(stderrors.New("x"))
	assert.Equal(t, CodeInternal, wrapped.Code)
	assert.Equal(t, "x", wrapped.Context["wrapped_error"])
}
