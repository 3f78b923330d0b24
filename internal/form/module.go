package form

import (
	"errors"

	"github.com/shandysiswandi/inboxed/internal/form/inbound"
	"github.com/shandysiswandi/inboxed/internal/form/outbound/email"
	"github.com/shandysiswandi/inboxed/internal/form/outbound/tempfile"
	"github.com/shandysiswandi/inboxed/internal/form/usecase"
	"github.com/shandysiswandi/inboxed/internal/pkg/clock"
	"github.com/shandysiswandi/inboxed/internal/pkg/config"
	"github.com/shandysiswandi/inboxed/internal/pkg/instrument"
	"github.com/shandysiswandi/inboxed/internal/pkg/mail"
	"github.com/shandysiswandi/inboxed/internal/pkg/metrics"
	"github.com/shandysiswandi/inboxed/internal/pkg/ratelimit"
	"github.com/shandysiswandi/inboxed/internal/pkg/router"
	"github.com/shandysiswandi/inboxed/internal/pkg/uid"
	"github.com/shandysiswandi/inboxed/internal/pkg/upload"
	"github.com/shandysiswandi/inboxed/internal/pkg/validator"
)

type Dependency struct {
	Config     config.Config
	Instrument instrument.Instrumentation
	UID        uid.NumberID
	Clock      clock.Clocker
	Validator  validator.Validator
	Router     *router.Router
	Mail       mail.Mail
	Upload     *upload.Parser
	Limiter    ratelimit.Limiter
	Metrics    *metrics.Registry
}

func New(dep Dependency) error {
	if dep.Upload == nil || dep.Mail == nil {
		return errors.New("form: upload parser and mail are required")
	}

	cleaner, err := tempfile.New(tempfile.Config{
		Roots:       append([]string{dep.Upload.Config().Dir}, dep.Config.GetArray("upload.cleanup_dirs")...),
		Timeout:     dep.Config.GetSecond("upload.cleanup_timeout_seconds"),
		Concurrency: dep.Config.GetInt("upload.cleanup_concurrency"),
	}, dep.Instrument, dep.Metrics)
	if err != nil {
		return err
	}

	uc := usecase.New(usecase.Dependency{
		Config:     dep.Config,
		UID:        dep.UID,
		Clock:      dep.Clock,
		Validator:  dep.Validator,
		RepoMail:   email.New(dep.Mail, dep.Instrument),
		RepoFile:   cleaner,
		Metrics:    dep.Metrics,
		Instrument: dep.Instrument,
	})

	inbound.RegisterHTTPEndpoint(dep.Router, uc, dep.Upload, router.RateLimit(dep.Limiter, dep.Clock))

	return nil
}
