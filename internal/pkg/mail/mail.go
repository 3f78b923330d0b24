package mail

import (
	"context"
	"io"
)

// Attachment is a file on local disk to attach to a message.
type Attachment struct {
	// Filename is the name shown to the recipient.
	Filename string
	// Path is where the content is read from at send time.
	Path string
	// ContentType is the declared media type; empty lets the transport guess.
	ContentType string
}

// Message represents an email payload.
type Message struct {
	// From is an optional explicit sender address; the transport default is used when empty.
	From string
	// FromName is the display name shown next to the sender address.
	FromName string
	// To lists required recipients.
	To []string
	// ReplyTo is the optional address replies go to.
	ReplyTo string
	// Subject is the email subject line. CR and LF are removed.
	Subject string
	// TextBody is the plain-text body.
	TextBody string
	// HTMLBody is the optional HTML alternative.
	HTMLBody string
	// Attachments are files added after the body parts.
	Attachments []Attachment
	// Headers are extra generic headers such as X-Submission-ID.
	Headers map[string]string
}

// Mail abstracts an email provider (SMTP, third-party API, etc).
type Mail interface {
	io.Closer
	// Send dispatches the given message using the underlying provider.
	Send(ctx context.Context, msg Message) error
}
