package router

import (
	"net/http"
	"net/netip"
	"strings"
)

// forwardedHeaders are consulted in order when the server runs behind a
// trusted proxy. Only the first X-Forwarded-For hop is used.
var forwardedHeaders = []string{"True-Client-IP", "X-Real-IP", "X-Forwarded-For"}

// middlewareClientIP replaces r.RemoteAddr with the bare client address so
// rate limiting and security logs key on the same value.
func middlewareClientIP(trustProxy bool) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if ip := clientIP(r, trustProxy); ip.IsValid() {
				r.RemoteAddr = ip.String()
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request, trustProxy bool) netip.Addr {
	if trustProxy {
		for _, name := range forwardedHeaders {
			first, _, _ := strings.Cut(r.Header.Get(name), ",")
			if ip, err := netip.ParseAddr(strings.TrimSpace(first)); err == nil {
				return ip.Unmap()
			}
		}
	}

	if ap, err := netip.ParseAddrPort(r.RemoteAddr); err == nil {
		return ap.Addr().Unmap()
	}
	// Already rewritten by an outer chain.
	ip, err := netip.ParseAddr(r.RemoteAddr)
	if err != nil {
		return netip.Addr{}
	}
	return ip.Unmap()
}
