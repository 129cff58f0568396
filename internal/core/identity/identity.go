// Package identity derives the privacy-preserving client key used for rate
// limiting and logging. Raw client addresses never leave this package.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"net"
	"net/http"
	"strings"
)

// HashLength is the number of hex characters kept from the digest.
const HashLength = 16

// ForwardedForHeader is consulted before the transport address.
const ForwardedForHeader = "X-Forwarded-For"

// Hasher binds client hashes to a deployment secret so they cannot be
// compared across deployments or reversed with a precomputed table.
type Hasher struct {
	secret string
}

// NewHasher creates a hasher salted with the shared secret.
func NewHasher(secret string) *Hasher {
	return &Hasher{secret: secret}
}

// Hash returns the first HashLength lowercase hex characters of
// sha256(address || secret).
func (h *Hasher) Hash(address string) string {
	sum := sha256.Sum256([]byte(address + h.secret))
	return hex.EncodeToString(sum[:])[:HashLength]
}

// ClientAddress returns the first X-Forwarded-For entry when present,
// otherwise the host part of the transport peer address.
func ClientAddress(r *http.Request) string {
	if forwarded := r.Header.Get(ForwardedForHeader); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}

	if r.RemoteAddr == "" {
		return "unknown"
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
