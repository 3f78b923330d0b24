package usecase

import (
	"context"
	"time"

	"github.com/shandysiswandi/inboxed/internal/form/entity"
	"github.com/shandysiswandi/inboxed/internal/pkg/clock"
	"github.com/shandysiswandi/inboxed/internal/pkg/config"
	"github.com/shandysiswandi/inboxed/internal/pkg/instrument"
	"github.com/shandysiswandi/inboxed/internal/pkg/uid"
	"github.com/shandysiswandi/inboxed/internal/pkg/validator"
	"go.opentelemetry.io/otel/trace"
)

type repoMail interface {
	Send(ctx context.Context, email entity.OutboundEmail) error
}

type repoFile interface {
	Remove(ctx context.Context, files []entity.UploadedFile) entity.CleanupReport
}

type recorder interface {
	Submission(outcome string)
	Dispatch(d time.Duration, err error)
}

type Usecase struct {
	cfg       config.Config
	uid       uid.NumberID
	clock     clock.Clocker
	validator validator.Validator
	repoMail  repoMail
	repoFile  repoFile
	metrics   recorder
	ins       instrument.Instrumentation
}

type Dependency struct {
	Config     config.Config
	UID        uid.NumberID
	Clock      clock.Clocker
	Validator  validator.Validator
	RepoMail   repoMail
	RepoFile   repoFile
	Metrics    recorder
	Instrument instrument.Instrumentation
}

func New(dep Dependency) *Usecase {
	return &Usecase{
		cfg:       dep.Config,
		uid:       dep.UID,
		clock:     dep.Clock,
		validator: dep.Validator,
		repoMail:  dep.RepoMail,
		repoFile:  dep.RepoFile,
		metrics:   dep.Metrics,
		ins:       dep.Instrument,
	}
}

func (s *Usecase) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.ins.Tracer("form.usecase").Start(ctx, name)
}

func (s *Usecase) record(outcome entity.Outcome) {
	if s.metrics != nil {
		s.metrics.Submission(outcome.String())
	}
}
