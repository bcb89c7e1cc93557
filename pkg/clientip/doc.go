// Package clientip extracts the originating client IP address from an
// *http.Request when the service runs behind one or more reverse proxies.
//
// GetIP checks CF-Connecting-IP, X-Forwarded-For and X-Real-IP in that
// order, validating each candidate, and falls back to RemoteAddr. It never
// returns an error; an empty string means no valid address was found.
//
// Middleware resolves the address once per request and stores it in the
// request context, where downstream handlers can read it with
// GetIPFromContext. The notification tracking endpoints use this to record
// which address opened or clicked an email.
package clientip
