package middleware

import "net/http"

// Response headers applied to every response.
const (
	HeaderContentTypeOptions = "X-Content-Type-Options"
	HeaderFrameOptions       = "X-Frame-Options"
)

// CORS preflight values.
const (
	AllowOrigin  = "*"
	AllowMethods = "POST, OPTIONS"
	AllowHeaders = "Content-Type, Authorization"
)

// SecurityHeaders sets the fixed header set before the handler runs so
// early exits carry it too.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set(HeaderContentTypeOptions, "nosniff")
		h.Set(HeaderFrameOptions, "DENY")
		h.Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// Preflight answers OPTIONS on any path with 204 and the CORS headers.
func Preflight(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", AllowOrigin)
		h.Set("Access-Control-Allow-Methods", AllowMethods)
		h.Set("Access-Control-Allow-Headers", AllowHeaders)
		w.WriteHeader(http.StatusNoContent)
	})
}
