package entity

import "github.com/shandysiswandi/inboxed/internal/pkg/valueobject"

// Submission is one form post after decoding.
type Submission struct {
	Tenant      string
	FormID      string
	Name        string
	Email       string
	Message     string
	Data        valueobject.JSON
	Attachments []UploadedFile
}

// UploadedFile is an attachment already written to local disk by the upload parser.
type UploadedFile struct {
	TemporaryPath string
	OriginalName  string
	MimeType      string
	SizeBytes     int64
}

type Attachment struct {
	Filename    string
	SourcePath  string
	ContentType string
}

// OutboundEmail is the composed message handed to the mail transport.
type OutboundEmail struct {
	SubmissionID     string
	FromDisplayName  string
	ReplyToAddress   string
	RecipientAddress string
	Subject          string
	PlainTextBody    string
	HTMLBody         string
	Attachments      []Attachment
}

// CleanupReport summarizes one attachment cleanup batch.
type CleanupReport struct {
	Files     int
	Succeeded int
	Failed    int
	Abandoned bool
}
