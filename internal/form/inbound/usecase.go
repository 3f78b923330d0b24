package inbound

import (
	"context"
	"net/http"

	"github.com/shandysiswandi/inboxed/internal/form/usecase"
	"github.com/shandysiswandi/inboxed/internal/pkg/upload"
)

type uc interface {
	Submit(ctx context.Context, in usecase.SubmitInput) (*usecase.SubmitOutput, error)
}

type parser interface {
	Parse(r *http.Request) (*upload.Form, error)
	Config() upload.Config
}
