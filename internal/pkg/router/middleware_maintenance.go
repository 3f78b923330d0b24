package router

import (
	"net/http"

	"github.com/samber/lo"
	"github.com/shandysiswandi/inboxed/internal/pkg/config"
)

func middlewareMaintenance(cfg config.Config) Middleware {
	endpoints := map[string]struct{}{}
	if cfg != nil {
		endpoints = lo.Keyify(cfg.GetArray("app.maintenance.endpoints"))
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route := matchedRoutePath(r)
			if _, blocked := endpoints[route]; blocked {
				writeJSON(w, errorResponse{Error: "Service is under maintenance"}, http.StatusServiceUnavailable)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
