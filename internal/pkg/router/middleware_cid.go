package router

import (
	"net/http"
	"strings"

	"github.com/shandysiswandi/inboxed/internal/pkg/instrument"
	"github.com/shandysiswandi/inboxed/internal/pkg/uid"
)

const (
	// HeaderCorrelationID is set on every response and accepted on requests.
	HeaderCorrelationID = "X-Correlation-ID"
	// HeaderRequestID is read when a proxy only forwards its own request id.
	HeaderRequestID = "X-Request-ID"

	maxCIDLen = 128
)

// acceptCID returns v when it is a usable inbound correlation id. Ids end up
// in log lines, the requestId of 500 bodies and the response header, so only
// a conservative token alphabet is accepted.
func acceptCID(v string) string {
	v = strings.TrimSpace(v)
	if v == "" || len(v) > maxCIDLen {
		return ""
	}
	for _, c := range v {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '-', c == '_', c == '.', c == ':':
		default:
			return ""
		}
	}
	return v
}

func middlewareCorrelationID(gen uid.StringID) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cid := acceptCID(r.Header.Get(HeaderCorrelationID))
			if cid == "" {
				cid = acceptCID(r.Header.Get(HeaderRequestID))
			}
			if cid == "" && gen != nil {
				cid = gen.Generate()
			}
			if cid == "" {
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set(HeaderCorrelationID, cid)
			next.ServeHTTP(w, r.WithContext(instrument.SetCorrelationID(r.Context(), cid)))
		})
	}
}
