package mail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	gomail "github.com/wneessen/go-mail"
)

var (
	// ErrSMTPHostPortRequired is returned when Host/Port are missing.
	ErrSMTPHostPortRequired = errors.New("smtp host and port are required")
	// ErrSMTPNoRecipients is returned when To is empty.
	ErrSMTPNoRecipients = errors.New("no recipients provided")
	// ErrSMTPNoSender is returned when both Message.From and the configured default From are empty.
	ErrSMTPNoSender = errors.New("no sender provided")
)

const maxRetryDelay = 5 * time.Second

var headerBreaks = strings.NewReplacer("\r", "", "\n", "")

// SMTPConfig configures the SMTP implementation.
type SMTPConfig struct {
	// Host is the SMTP server hostname.
	Host string
	// Port is the SMTP server port.
	Port int
	// Username is the SMTP authentication username. Empty disables auth.
	Username string
	// Password is the SMTP authentication password.
	Password string
	// From is the default sender when Message.From is empty.
	From string
	// Secure selects implicit TLS instead of opportunistic STARTTLS.
	Secure bool
	// Timeout bounds dialing and each SMTP command.
	Timeout time.Duration
	// MaxAttempts is the total number of delivery attempts, at least 1.
	MaxAttempts int
	// RetryBaseDelay is the first backoff delay; it doubles per attempt.
	RetryBaseDelay time.Duration
}

// SMTP is a Mail implementation backed by go-mail. It dials once per
// delivery attempt, which suits low-volume relay traffic.
type SMTP struct {
	cfg SMTPConfig
}

// NewSMTP constructs an SMTP mail sender.
func NewSMTP(cfg SMTPConfig) (*SMTP, error) {
	if cfg.Host == "" || cfg.Port == 0 {
		return nil, ErrSMTPHostPortRequired
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = 200 * time.Millisecond
	}

	return &SMTP{cfg: cfg}, nil
}

// Send delivers a message over SMTP, retrying temporary failures.
func (s *SMTP) Send(ctx context.Context, msg Message) error {
	m, err := s.build(msg)
	if err != nil {
		return err
	}

	b := retry.NewExponential(s.cfg.RetryBaseDelay)
	b = retry.WithCappedDuration(maxRetryDelay, b)
	b = retry.WithMaxRetries(uint64(s.cfg.MaxAttempts-1), b) //nolint:gosec // MaxAttempts >= 1

	attempt := 0
	return retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++

		client, err := s.client()
		if err != nil {
			return fmt.Errorf("smtp client: %w", err)
		}

		if err := client.DialAndSendWithContext(ctx, m); err != nil {
			if isPermanent(err) || attempt >= s.cfg.MaxAttempts {
				return fmt.Errorf("smtp send: %w", err)
			}
			slog.WarnContext(ctx, "smtp send failed, retrying", "attempt", attempt, "error", err)
			return retry.RetryableError(fmt.Errorf("smtp send: %w", err))
		}

		return nil
	})
}

// Close implements io.Closer for interface compatibility.
func (s *SMTP) Close() error {
	return nil
}

func (s *SMTP) client() (*gomail.Client, error) {
	opts := make([]gomail.Option, 0, 6)
	if s.cfg.Secure {
		opts = append(opts, gomail.WithSSL())
	} else {
		opts = append(opts, gomail.WithTLSPortPolicy(gomail.TLSOpportunistic))
	}
	// Port last: the TLS options above pick their own default port.
	opts = append(opts, gomail.WithPort(s.cfg.Port))
	if s.cfg.Timeout > 0 {
		opts = append(opts, gomail.WithTimeout(s.cfg.Timeout))
	}
	if s.cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(s.cfg.Username),
			gomail.WithPassword(s.cfg.Password),
		)
	}

	return gomail.NewClient(s.cfg.Host, opts...)
}

func (s *SMTP) build(msg Message) (*gomail.Msg, error) {
	if len(msg.To) == 0 {
		return nil, ErrSMTPNoRecipients
	}

	from := msg.From
	if from == "" {
		from = s.cfg.From
	}
	if from == "" {
		return nil, ErrSMTPNoSender
	}

	m := gomail.NewMsg()
	if err := m.FromFormat(headerBreaks.Replace(msg.FromName), from); err != nil {
		return nil, fmt.Errorf("set from: %w", err)
	}
	if err := m.To(msg.To...); err != nil {
		return nil, fmt.Errorf("set to: %w", err)
	}
	if msg.ReplyTo != "" {
		if err := m.ReplyTo(msg.ReplyTo); err != nil {
			return nil, fmt.Errorf("set reply-to: %w", err)
		}
	}
	m.Subject(headerBreaks.Replace(msg.Subject))
	m.SetMessageID()
	m.SetDate()
	for k, v := range msg.Headers {
		m.SetGenHeader(gomail.Header(k), headerBreaks.Replace(v))
	}

	m.SetBodyString(gomail.TypeTextPlain, msg.TextBody)
	if msg.HTMLBody != "" {
		m.AddAlternativeString(gomail.TypeTextHTML, msg.HTMLBody)
	}

	for _, a := range msg.Attachments {
		opts := []gomail.FileOption{gomail.WithFileName(a.Filename)}
		if a.ContentType != "" {
			opts = append(opts, gomail.WithFileContentType(gomail.ContentType(a.ContentType)))
		}
		m.AttachFile(a.Path, opts...)
	}

	return m, nil
}

func isPermanent(err error) bool {
	var se *gomail.SendError
	return errors.As(err, &se) && !se.IsTemp()
}
