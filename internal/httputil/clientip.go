// Package httputil holds request helpers shared by the ops HTTP server.
package httputil

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP returns the address to attribute a request to in access logs.
// With trustProxy set, the first X-Forwarded-For hop and then X-Real-IP are
// used when they hold a parseable IP; otherwise the host part of RemoteAddr.
func ClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if ip := strings.TrimSpace(first); net.ParseIP(ip) != nil {
				return ip
			}
		}
		if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); net.ParseIP(ip) != nil {
			return ip
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
