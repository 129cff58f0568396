// Package auth verifies the shared bearer secret presented by callers.
package auth

import (
	"crypto/subtle"
	"regexp"
)

// AuthorizationHeader carries the bearer secret.
const AuthorizationHeader = "Authorization"

var bearerPrefix = regexp.MustCompile(`(?i)^Bearer\s+`)

// StripBearer removes an optional case-insensitive "Bearer " prefix.
func StripBearer(header string) string {
	return bearerPrefix.ReplaceAllString(header, "")
}

// Verify reports whether the presented credential matches expected. Lengths
// are not secret and are compared up front; the byte comparison itself is
// constant time.
func Verify(presented, expected string) bool {
	if expected == "" {
		return false
	}
	key := StripBearer(presented)
	if len(key) != len(expected) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(key), []byte(expected)) == 1
}
