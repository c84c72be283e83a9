package authapi

import (
	"context"
	"log/slog"
)

// EmailSender delivers one-time codes. The auth flows only require that
// delivery is attempted; a failed send never rolls the operation back.
type EmailSender interface {
	SendVerificationCode(ctx context.Context, email, code string) error
	SendPasswordResetCode(ctx context.Context, email, code string) error
}

// NoopEmailSender drops every message. Default until a provider is wired.
type NoopEmailSender struct{}

// SendVerificationCode implements EmailSender.
func (NoopEmailSender) SendVerificationCode(_ context.Context, _, _ string) error { return nil }

// SendPasswordResetCode implements EmailSender.
func (NoopEmailSender) SendPasswordResetCode(_ context.Context, _, _ string) error { return nil }

// LogEmailSender writes codes to the log instead of sending mail.
// Development only: codes in logs defeat the point of emailing them.
type LogEmailSender struct {
	Log *slog.Logger
}

// SendVerificationCode implements EmailSender.
func (s LogEmailSender) SendVerificationCode(_ context.Context, email, code string) error {
	s.logger().Info("email.verification_code", "email", email, "code", code)
	return nil
}

// SendPasswordResetCode implements EmailSender.
func (s LogEmailSender) SendPasswordResetCode(_ context.Context, email, code string) error {
	s.logger().Info("email.password_reset_code", "email", email, "code", code)
	return nil
}

func (s LogEmailSender) logger() *slog.Logger {
	if s.Log != nil {
		return s.Log
	}
	return slog.Default()
}
