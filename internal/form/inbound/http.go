package inbound

import (
	"github.com/shandysiswandi/inboxed/internal/pkg/router"
)

func RegisterHTTPEndpoint(r *router.Router, uc uc, up parser, mws ...router.Middleware) {
	end := &HTTPEndpoint{uc: uc, upload: up}

	r.POST("/api/form/submit", end.Submit, mws...)
}
