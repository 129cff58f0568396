package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecurityHeaders(t *testing.T) {
	handler := SecurityHeaders(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/ask", nil))

	assert.Equal(t, "nosniff", rec.Header().Get(HeaderContentTypeOptions))
	assert.Equal(t, "DENY", rec.Header().Get(HeaderFrameOptions))
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

func TestPreflight(t *testing.T) {
	called := false
	handler := Preflight(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	for _, path := range []string{"/ask", "/health", "/anything/else"} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, path, nil))

		require.Equal(t, http.StatusNoContent, rec.Code, path)
		assert.Equal(t, AllowOrigin, rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, AllowMethods, rec.Header().Get("Access-Control-Allow-Methods"))
		assert.Equal(t, AllowHeaders, rec.Header().Get("Access-Control-Allow-Headers"))
		assert.Empty(t, rec.Body.String())
	}
	assert.False(t, called)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.True(t, called)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
