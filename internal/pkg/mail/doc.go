// Package mail defines the contracts for sending email messages.
//
// Use cases work with the Mail interface and the Message payload. SMTP
// delivers through github.com/wneessen/go-mail and retries temporary
// failures with exponential backoff.
package mail
