package usecase

import (
	"cmp"
	"context"
	"errors"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/shandysiswandi/inboxed/internal/form/entity"
	"github.com/shandysiswandi/inboxed/internal/pkg/goerror"
	"github.com/shandysiswandi/inboxed/internal/pkg/instrument"
	"github.com/shandysiswandi/inboxed/internal/pkg/sanitizer"
	"github.com/shandysiswandi/inboxed/internal/pkg/validator"
	"github.com/shandysiswandi/inboxed/internal/pkg/valueobject"
)

const (
	msgBotDetected     = "Bot detected."
	msgInvalidDataJSON = "Invalid JSON in `data` field"
	msgSendFailed      = "Failed to send email"
)

type SubmitInput struct {
	Tenant  string
	FormID  string
	Name    string
	Email   string
	Message string
	// Website is the honeypot field; humans never fill it in.
	Website string
	// Data is either an object or, for multipart bodies, a JSON string.
	Data        valueobject.JSON
	Attachments []entity.UploadedFile
	// FieldErrors are text fields that arrived with a non-string JSON type.
	// They are reported with the schema violations.
	FieldErrors validator.V10ValidationError

	ClientIP  string
	UserAgent string
}

type SubmitOutput struct {
	SubmissionID string
}

type submissionSchema struct {
	Tenant  string           `json:"tenant" validate:"required"`
	FormID  string           `json:"formId" validate:"required"`
	Name    string           `json:"name" validate:"required"`
	Email   string           `json:"email" validate:"required,max=100,email"`
	Message string           `json:"message" validate:"omitempty,max=1000"`
	Data    valueobject.JSON `json:"data" validate:"required,jsonobject"`
}

var schemaFields = []string{"tenant", "formId", "name", "email", "message", "data"}

// validate runs the schema and folds in the mistyped fields. A mistyped
// field reports only its type error.
func (s *Usecase) validate(schema submissionSchema, mistyped validator.V10ValidationError) error {
	err := s.validator.Validate(schema)
	if len(mistyped) == 0 {
		return err
	}

	var verr validator.V10ValidationError
	if err != nil && !errors.As(err, &verr) {
		return err
	}

	skip := lo.Keyify(lo.Map(mistyped, func(fe validator.FieldError, _ int) string { return fe.Field }))
	merged := append(slices.Clone(mistyped), lo.Reject(verr, func(fe validator.FieldError, _ int) bool {
		_, ok := skip[fe.Field]
		return ok
	})...)
	slices.SortStableFunc(merged, func(a, b validator.FieldError) int {
		return cmp.Compare(lo.IndexOf(schemaFields, a.Field), lo.IndexOf(schemaFields, b.Field))
	})

	return merged
}

// Submit relays one form submission by email.
//
// Attachments are removed from disk before Submit returns, whatever the outcome.
func (s *Usecase) Submit(ctx context.Context, in SubmitInput) (*SubmitOutput, error) {
	ctx, span := s.startSpan(ctx, "Submit")
	defer span.End()

	started := s.clock.Now()

	if len(in.Attachments) > 0 {
		defer s.repoFile.Remove(context.WithoutCancel(ctx), in.Attachments)
	}

	if strings.TrimSpace(in.Website) != "" {
		instrument.SecurityEvent(ctx, "honeypot_triggered",
			"client_ip", in.ClientIP,
			"user_agent", in.UserAgent,
			"tenant", in.Tenant,
			"form_id", in.FormID,
		)
		s.record(entity.OutcomeBot)
		return nil, goerror.NewBusiness(msgBotDetected, goerror.CodeRejected)
	}

	data := in.Data
	if data.Kind() == valueobject.KindString {
		parsed, err := valueobject.ParseJSON(data.Str())
		if err != nil {
			slog.WarnContext(ctx, "failed to decode data field", "tenant", in.Tenant, "form_id", in.FormID, "error", err)
			s.record(entity.OutcomeMalformed)
			return nil, goerror.NewInvalidFormat(msgInvalidDataJSON)
		}
		data = parsed
	}

	schema := submissionSchema{
		Tenant:  in.Tenant,
		FormID:  in.FormID,
		Name:    in.Name,
		Email:   in.Email,
		Message: in.Message,
		Data:    data,
	}
	if err := s.validate(schema, in.FieldErrors); err != nil {
		var verr validator.V10ValidationError
		if !errors.As(err, &verr) {
			slog.ErrorContext(ctx, "failed to run validator", "error", err)
			return nil, goerror.NewServer(err)
		}
		s.record(entity.OutcomeInvalid)
		return nil, goerror.NewInvalidInput(err)
	}

	sub := s.sanitize(entity.Submission{
		Tenant:      schema.Tenant,
		FormID:      schema.FormID,
		Name:        schema.Name,
		Email:       schema.Email,
		Message:     schema.Message,
		Data:        schema.Data,
		Attachments: in.Attachments,
	})

	id := strconv.FormatInt(s.uid.Generate(), 10)
	slog.InfoContext(ctx, "form submission received",
		"event", "form_submission",
		"submission_id", id,
		"tenant", sub.Tenant,
		"form_id", sub.FormID,
		"attachments", len(sub.Attachments),
	)

	email := composeEmail(sub, started, s.cfg.GetString("form.to_email"))
	email.SubmissionID = id

	if err := s.dispatch(ctx, email); err != nil {
		slog.ErrorContext(ctx, "failed to send email",
			"event", "email_failed",
			"submission_id", id,
			"tenant", sub.Tenant,
			"form_id", sub.FormID,
			"error", err,
		)
		s.record(entity.OutcomeFailed)
		return nil, goerror.NewServer(err, msgSendFailed)
	}

	slog.InfoContext(ctx, "email sent",
		"event", "email_sent",
		"submission_id", id,
		"tenant", sub.Tenant,
		"form_id", sub.FormID,
		"attachments", len(email.Attachments),
		"processing_time_ms", s.clock.Now().Sub(started).Milliseconds(),
	)
	s.record(entity.OutcomeSent)

	return &SubmitOutput{SubmissionID: id}, nil
}

// dispatch hands email to the transport. A client disconnect does not abort
// the send, only smtp.send_timeout_seconds does.
func (s *Usecase) dispatch(ctx context.Context, email entity.OutboundEmail) error {
	ctx = context.WithoutCancel(ctx)
	if timeout := s.cfg.GetSecond("smtp.send_timeout_seconds"); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	err := s.repoMail.Send(ctx, email)
	if s.metrics != nil {
		s.metrics.Dispatch(time.Since(start), err)
	}

	return err
}

func (s *Usecase) sanitize(sub entity.Submission) entity.Submission {
	sub.Name = sanitizer.Text(sub.Name)
	sub.Attachments = lo.Map(sub.Attachments, func(f entity.UploadedFile, _ int) entity.UploadedFile {
		f.OriginalName = sanitizer.Filename(f.OriginalName)
		return f
	})
	return sub
}
