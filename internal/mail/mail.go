// Package mail sends account emails (confirmation and password reset links).
package mail

import (
	"context"
	"fmt"
	"strings"

	"cogi/internal/config"
	"cogi/internal/logger"
)

// Message is a plain-text email.
type Message struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Mailer delivers a Message.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// New builds the Mailer selected by cfg.Transport.
func New(cfg config.MailConfig) (Mailer, error) {
	switch cfg.Transport {
	case "log":
		return LogMailer{}, nil
	case "smtp":
		return NewSMTPMailer(cfg), nil
	case "amqp":
		return NewQueueMailer(cfg.AMQPURL, cfg.Queue), nil
	default:
		return nil, fmt.Errorf("unknown mail transport %q", cfg.Transport)
	}
}

// LogMailer writes messages to the application log instead of sending them.
type LogMailer struct{}

// Send implements Mailer.
func (LogMailer) Send(_ context.Context, msg Message) error {
	logger.Get().Infow("mail (log transport)",
		"to", msg.To,
		"subject", msg.Subject,
		"body", msg.Body,
	)
	return nil
}

// ConfirmationMessage builds the email sent after registration.
func ConfirmationMessage(to, link string) Message {
	return Message{
		To:      to,
		Subject: "Confirm your Cogi account",
		Body: strings.Join([]string{
			"Welcome to Cogi!",
			"",
			"Please confirm your email address by opening the link below:",
			link,
			"",
			"The link expires in one hour.",
		}, "\n"),
	}
}

// PasswordResetMessage builds the email sent for a password reset request.
func PasswordResetMessage(to, link string) Message {
	return Message{
		To:      to,
		Subject: "Reset your Cogi password",
		Body: strings.Join([]string{
			"We received a request to reset your password.",
			"",
			"Open the link below to choose a new one:",
			link,
			"",
			"If you did not ask for this, you can ignore this email. The link expires in one hour.",
		}, "\n"),
	}
}
