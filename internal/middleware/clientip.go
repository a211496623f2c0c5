package middleware

import (
	"net"
	"net/http"
	"strings"
)

// UnknownClient is the identity shared by every request without a usable
// address.
const UnknownClient = "unknown"

// ClientIdentity derives the rate-limit key for r: the first X-Forwarded-For
// hop, then X-Real-IP, then the peer address.
func ClientIdentity(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}

	remote := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(remote); err == nil && host != "" {
		return host
	}
	if remote != "" {
		return remote
	}
	return UnknownClient
}
