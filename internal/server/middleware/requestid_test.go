package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func captureRequestID(t *testing.T, inbound string) (ctxID, headerID string) {
	t.Helper()

	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctxID = GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	if inbound != "" {
		req.Header.Set(RequestIDHeader, inbound)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	return ctxID, rec.Header().Get(RequestIDHeader)
}

func TestRequestID_ReusesWellFormedInbound(t *testing.T) {
	ctxID, headerID := captureRequestID(t, "test-request-id")
	assert.Equal(t, "test-request-id", ctxID)
	assert.Equal(t, "test-request-id", headerID)
}

func TestRequestID_GeneratesWhenMissing(t *testing.T) {
	ctxID, headerID := captureRequestID(t, "")
	assert.Equal(t, ctxID, headerID)
	_, err := uuid.Parse(headerID)
	assert.NoError(t, err)
}

func TestRequestID_ReplacesMalformedInbound(t *testing.T) {
	for _, inbound := range []string{"bad id\nwith newline", strings.Repeat("a", maxInboundRequestID+1), "<script>"} {
		_, headerID := captureRequestID(t, inbound)
		assert.NotEqual(t, inbound, headerID)
		_, err := uuid.Parse(headerID)
		assert.NoError(t, err)
	}
}
