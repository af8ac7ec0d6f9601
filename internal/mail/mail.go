// Package mail – outbound e-mail delivery
//
// This file implements the Mailer used by the auth flow to deliver account
// verification and password-reset messages. Delivery goes out over SMTP via
// go-mail; when no SMTP host is configured (local development) the mailer
// degrades to logging the message instead of sending it, so signup and
// password recovery remain usable without a mail server.
package mail

import (
	"bytes"
	"context"
	"time"

	gomail "github.com/wneessen/go-mail"

	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-movie-backend/internal/config"
)

// Mailer sends account lifecycle e-mails. Implementations must be safe for
// concurrent use.
type Mailer interface {
	// SendWelcome delivers the signup message carrying the e-mail
	// verification link.
	SendWelcome(ctx context.Context, to, name, verificationURL string) error

	// SendPasswordReset delivers the password recovery message carrying the
	// reset link.
	SendPasswordReset(ctx context.Context, to, name, resetURL string) error
}

// SMTPMailer delivers mail through an SMTP relay using go-mail.
type SMTPMailer struct {
	cfg config.MailConfig
}

// NewMailer builds a Mailer from configuration. When cfg.Host is empty the
// returned mailer only logs outgoing messages.
func NewMailer(cfg config.MailConfig) Mailer {
	if cfg.Host == "" {
		return &LogMailer{}
	}
	return &SMTPMailer{cfg: cfg}
}

// SendWelcome implements Mailer.
func (m *SMTPMailer) SendWelcome(ctx context.Context, to, name, verificationURL string) error {
	body, err := renderWelcome(name, verificationURL)
	if err != nil {
		return err
	}
	return m.send(ctx, to, "Bem-vindo ao Cine Catálogo", body)
}

// SendPasswordReset implements Mailer.
func (m *SMTPMailer) SendPasswordReset(ctx context.Context, to, name, resetURL string) error {
	body, err := renderPasswordReset(name, resetURL)
	if err != nil {
		return err
	}
	return m.send(ctx, to, "Redefinição de Senha", body)
}

func (m *SMTPMailer) send(ctx context.Context, to, subject, htmlBody string) error {
	msg := gomail.NewMsg()
	if err := msg.From(m.cfg.From); err != nil {
		return err
	}
	if err := msg.To(to); err != nil {
		return err
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextHTML, htmlBody)

	opts := []gomail.Option{
		gomail.WithPort(m.cfg.Port),
		gomail.WithTimeout(15 * time.Second),
	}
	if m.cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(m.cfg.Username),
			gomail.WithPassword(m.cfg.Password),
		)
	}

	client, err := gomail.NewClient(m.cfg.Host, opts...)
	if err != nil {
		return err
	}
	return client.DialAndSendWithContext(ctx, msg)
}

// LogMailer writes outgoing messages to the log instead of delivering them.
// Used when SMTP is not configured.
type LogMailer struct{}

// SendWelcome implements Mailer.
func (m *LogMailer) SendWelcome(ctx context.Context, to, name, verificationURL string) error {
	log.Info().
		Str("to", to).
		Str("verification_url", verificationURL).
		Msg("mail: SMTP not configured, skipping welcome e-mail")
	return nil
}

// SendPasswordReset implements Mailer.
func (m *LogMailer) SendPasswordReset(ctx context.Context, to, name, resetURL string) error {
	log.Info().
		Str("to", to).
		Str("reset_url", resetURL).
		Msg("mail: SMTP not configured, skipping password reset e-mail")
	return nil
}

func renderTemplate(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
