package ratelimit

import (
	"net"
	"net/http"
	"strings"

	"authorities/internal/models"
)

// ResolveAddress picks the caller identity from forwarding headers, falling
// back to the transport peer. Headers are trusted as sent, so the result is
// spoofable and only suitable as a coarse rate-limit key.
func ResolveAddress(header http.Header, remoteAddr string) string {
	if xff := header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}

	if xri := strings.TrimSpace(header.Get("X-Real-IP")); xri != "" {
		return xri
	}

	if cf := strings.TrimSpace(header.Get("CF-Connecting-IP")); cf != "" {
		return cf
	}

	if remoteAddr != "" {
		if host, _, err := net.SplitHostPort(remoteAddr); err == nil && host != "" {
			return host
		}
		return remoteAddr
	}

	return models.UnknownAddress
}

// ClientAddress resolves the caller identity of r.
func ClientAddress(r *http.Request) string {
	return ResolveAddress(r.Header, r.RemoteAddr)
}
