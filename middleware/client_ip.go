package middleware

import (
	"net"
	"net/http"
	"strings"

	authkit "github.com/craftdex/authkit"
)

// ClientIP returns middleware that records the request's client IP in the
// context, where the engine picks it up for per-IP throttling and audit.
// Mount it in front of login and refresh endpoints; they are unauthenticated,
// so the guard never sees them.
//
// trustProxy controls whether X-Forwarded-For is believed. Enable it only
// behind a proxy that strips the header from client traffic, otherwise
// callers spoof their way past per-IP throttles.
func ClientIP(trustProxy bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := remoteIP(r)
			if trustProxy {
				if fwd := forwardedIP(r.Header.Get("X-Forwarded-For")); fwd != "" {
					ip = fwd
				}
			}
			if ip != "" {
				r = r.WithContext(authkit.WithClientIP(r.Context(), ip))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// forwardedIP takes the first, client-most entry of an X-Forwarded-For list.
func forwardedIP(header string) string {
	if header == "" {
		return ""
	}
	first, _, _ := strings.Cut(header, ",")
	return strings.TrimSpace(first)
}
