package usecase

import (
	"bytes"
	"html/template"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/shandysiswandi/inboxed/internal/form/entity"
)

const (
	sourceLabel     = "Inboxed Form Handler"
	subjectFallback = "New Form Submission"
	submittedLayout = "2006-01-02T15:04:05.000Z"
)

var (
	textRule = strings.Repeat("=", 50)

	htmlTemplate = template.Must(template.New("email").Funcs(template.FuncMap{
		"nl2br": func(s string) template.HTML {
			//nolint:gosec // input is escaped before the line breaks are added
			return template.HTML(strings.ReplaceAll(template.HTMLEscapeString(s), "\n", "<br>"))
		},
	}).Parse(emailHTML))
)

type emailView struct {
	Name           string
	Email          string
	Message        string
	Data           string
	HasAttachments bool
	Submitted      string
	FormID         string
	Tenant         string
	Source         string
}

// composeEmail renders sub into a plain-text and HTML email for recipient.
// sub must already be validated and sanitized.
func composeEmail(sub entity.Submission, submittedAt time.Time, recipient string) entity.OutboundEmail {
	view := emailView{
		Name:           sub.Name,
		Email:          sub.Email,
		Message:        sub.Message,
		HasAttachments: len(sub.Attachments) > 0,
		Submitted:      submittedAt.UTC().Format(submittedLayout),
		FormID:         sub.FormID,
		Tenant:         sub.Tenant,
		Source:         sourceLabel,
	}
	if sub.Data.Len() > 0 {
		view.Data = sub.Data.Indent("  ")
	}

	return entity.OutboundEmail{
		FromDisplayName:  sub.Name,
		ReplyToAddress:   sub.Email,
		RecipientAddress: recipient,
		Subject:          subject(sub.Name),
		PlainTextBody:    renderText(view),
		HTMLBody:         renderHTML(view),
		Attachments: lo.Map(sub.Attachments, func(f entity.UploadedFile, _ int) entity.Attachment {
			return entity.Attachment{
				Filename:    f.OriginalName,
				SourcePath:  f.TemporaryPath,
				ContentType: f.MimeType,
			}
		}),
	}
}

func subject(name string) string {
	name = strings.TrimSpace(strings.NewReplacer("\r", "", "\n", "").Replace(name))
	if name == "" {
		return subjectFallback
	}
	return subjectFallback + " from " + name
}

func renderText(v emailView) string {
	var b strings.Builder

	b.WriteString("📬 NEW FORM SUBMISSION\n")
	b.WriteString(textRule + "\n\n")
	b.WriteString("Name: " + v.Name + "\n")
	b.WriteString("Email: " + v.Email + "\n")

	if v.Message != "" {
		b.WriteString("\nMessage:\n" + v.Message + "\n")
	}
	if v.Data != "" {
		b.WriteString("\nAdditional Data:\n" + v.Data + "\n")
	}

	b.WriteString("\n" + textRule + "\n")
	b.WriteString("Submitted: " + v.Submitted + "\n")
	b.WriteString("Form ID: " + v.FormID + "\n")
	b.WriteString("Tenant: " + v.Tenant + "\n")
	b.WriteString("Source: " + v.Source + "\n")

	return b.String()
}

func renderHTML(v emailView) string {
	var buf bytes.Buffer
	if err := htmlTemplate.Execute(&buf, v); err != nil {
		// All fields are strings and the template is parsed at init.
		panic(err)
	}
	return buf.String()
}

const emailHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>New Form Submission</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; background-color: #f5f5f5; }
        .container { background: white; border-radius: 8px; padding: 30px; box-shadow: 0 2px 10px rgba(0,0,0,0.1); }
        .header { border-bottom: 3px solid #007bff; padding-bottom: 20px; margin-bottom: 30px; }
        .header h1 { color: #007bff; margin: 0; font-size: 24px; }
        .field { margin-bottom: 20px; padding: 15px; background-color: #f8f9fa; border-radius: 5px; border-left: 4px solid #007bff; }
        .field-label { font-weight: 600; color: #495057; margin-bottom: 5px; text-transform: uppercase; font-size: 12px; letter-spacing: 0.5px; }
        .field-value { color: #212529; font-size: 14px; word-wrap: break-word; }
        .message-field { background-color: #fff3cd; border-left-color: #ffc107; }
        .extra-data { margin-top: 20px; }
        .extra-data-content { background-color: #e9ecef; padding: 15px; border-radius: 5px; font-family: 'Courier New', monospace; font-size: 12px; white-space: pre-wrap; overflow-x: auto; }
        .attachments-notice { background-color: #d1ecf1; border: 1px solid #bee5eb; border-radius: 5px; padding: 10px; margin-top: 20px; font-size: 14px; color: #0c5460; }
        .metadata { margin-top: 30px; padding-top: 20px; border-top: 1px solid #dee2e6; font-size: 12px; color: #6c757d; }
        .metadata-grid { display: grid; grid-template-columns: 1fr 1fr; gap: 10px; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>📬 New Form Submission</h1>
        </div>

        <div class="field">
            <div class="field-label">Name</div>
            <div class="field-value">{{.Name}}</div>
        </div>

        <div class="field">
            <div class="field-label">Email</div>
            <div class="field-value">{{.Email}}</div>
        </div>
{{if .Message}}
        <div class="field message-field">
            <div class="field-label">Message</div>
            <div class="field-value">{{nl2br .Message}}</div>
        </div>
{{end}}{{if .Data}}
        <div class="extra-data">
            <div class="field-label">Additional Data</div>
            <div class="extra-data-content">{{.Data}}</div>
        </div>
{{end}}{{if .HasAttachments}}
        <div class="attachments-notice">
            📎 Any file attachments are included with this email
        </div>
{{end}}
        <div class="metadata">
            <div class="metadata-grid">
                <div><strong>Submitted:</strong> {{.Submitted}}</div>
                <div><strong>Form ID:</strong> {{.FormID}}</div>
                <div><strong>Tenant:</strong> {{.Tenant}}</div>
                <div><strong>Source:</strong> {{.Source}}</div>
            </div>
        </div>
    </div>
</body>
</html>
`
