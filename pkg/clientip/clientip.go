package clientip

import (
	"net"
	"net/http"
	"strings"
)

// GetIP resolves the originating client address of an HTTP request.
// Proxy headers are consulted in descending trust order before falling
// back to the TCP peer address:
//  1. CF-Connecting-IP (Cloudflare)
//  2. X-Forwarded-For (first valid entry)
//  3. X-Real-IP (Nginx reverse proxy)
//  4. RemoteAddr
func GetIP(r *http.Request) string {
	if ip := r.Header.Get("CF-Connecting-IP"); ip != "" {
		if parsed := parseIP(ip); parsed != "" {
			return parsed
		}
	}

	// X-Forwarded-For can carry a comma-separated chain, take the first
	// entry that parses as a real address.
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		for ip := range strings.SplitSeq(forwarded, ",") {
			if parsed := parseIP(strings.TrimSpace(ip)); parsed != "" {
				return parsed
			}
		}
	}

	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		if parsed := parseIP(ip); parsed != "" {
			return parsed
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		// RemoteAddr may already be a bare IP without a port.
		return parseIP(r.RemoteAddr)
	}
	return parseIP(host)
}

// parseIP validates and normalizes an IP address string. Returns an
// empty string when the input is not a valid address.
func parseIP(ipStr string) string {
	ipStr = strings.TrimSpace(ipStr)
	if ipStr == "" {
		return ""
	}

	ip := net.ParseIP(ipStr)
	if ip == nil {
		return ""
	}

	return ip.String()
}
