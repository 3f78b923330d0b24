package email

import (
	"context"

	"github.com/samber/lo"
	"github.com/shandysiswandi/inboxed/internal/form/entity"
	"github.com/shandysiswandi/inboxed/internal/pkg/instrument"
	"github.com/shandysiswandi/inboxed/internal/pkg/mail"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// HeaderSubmissionID carries the submission id so a delivered message can be
// matched with the logs.
const HeaderSubmissionID = "X-Submission-ID"

type Mail struct {
	client mail.Mail
	ins    instrument.Instrumentation
}

func New(client mail.Mail, ins instrument.Instrumentation) *Mail {
	return &Mail{client: client, ins: ins}
}

func (m *Mail) Send(ctx context.Context, email entity.OutboundEmail) error {
	ctx, span := m.ins.Tracer("form.outbound.email").Start(ctx, "Send")
	defer span.End()

	span.SetAttributes(
		attribute.String("submission.id", email.SubmissionID),
		attribute.Int("email.attachments", len(email.Attachments)),
	)

	if err := m.client.Send(ctx, toMessage(email)); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	return nil
}

func toMessage(email entity.OutboundEmail) mail.Message {
	msg := mail.Message{
		FromName: email.FromDisplayName,
		To:       []string{email.RecipientAddress},
		ReplyTo:  email.ReplyToAddress,
		Subject:  email.Subject,
		TextBody: email.PlainTextBody,
		HTMLBody: email.HTMLBody,
		Attachments: lo.Map(email.Attachments, func(a entity.Attachment, _ int) mail.Attachment {
			return mail.Attachment{Filename: a.Filename, Path: a.SourcePath, ContentType: a.ContentType}
		}),
	}
	if email.SubmissionID != "" {
		msg.Headers = map[string]string{HeaderSubmissionID: email.SubmissionID}
	}
	return msg
}
