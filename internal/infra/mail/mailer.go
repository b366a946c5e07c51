package mail

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/orsocook/orso-auth/internal/core/port"
	"github.com/orsocook/orso-auth/internal/infra/config"
	"github.com/orsocook/orso-auth/internal/infra/logger"
)

const (
	defaultSenderEmail = "noreply@orsocook.us.ci"
	defaultSenderName  = "OrsoCook 🐻"
	defaultFrontendURL = "https://dibiase123.github.io/orsocook"
)

type sender interface {
	Send(ctx context.Context, msg brevoMessage) (string, error)
}

// Mailer renders account emails and hands them to Brevo. Without an API key it
// only logs what it would have sent and reports success.
type Mailer struct {
	client        sender
	logger        *zap.Logger
	senderEmail   string
	senderName    string
	frontendURL   string
	emailTTL      time.Duration
	resetTTL      time.Duration
	logLinksInDev bool
}

// NewMailer builds the port.EmailSender for the configured environment.
func NewMailer(cfg config.EmailSettings, auth config.AuthSettings, env string, log *zap.Logger) *Mailer {
	if log == nil {
		log = zap.NewNop()
	}

	m := &Mailer{
		logger:        log,
		senderEmail:   firstNonEmpty(cfg.SenderEmail, defaultSenderEmail),
		senderName:    firstNonEmpty(cfg.SenderName, defaultSenderName),
		frontendURL:   strings.TrimRight(firstNonEmpty(cfg.FrontendURL, defaultFrontendURL), "/"),
		emailTTL:      auth.EmailTokenTTL,
		resetTTL:      auth.ResetTokenTTL,
		logLinksInDev: strings.EqualFold(env, "development"),
	}

	if cfg.BrevoAPIKey == "" {
		log.Warn("Brevo API key not configured, emails will only be logged")
		return m
	}

	m.client = NewBrevoClient(cfg.BrevoAPIKey, cfg.BrevoBaseURL, cfg.Timeout)
	return m
}

// Configured reports whether emails are actually delivered.
func (m *Mailer) Configured() bool {
	return m.client != nil
}

// SendVerificationEmail mails the {frontend}/verify-email link.
func (m *Mailer) SendVerificationEmail(ctx context.Context, to, username, token string) error {
	data := templateData{
		Username:    username,
		ActionURL:   m.link("/verify-email", token),
		FrontendURL: m.frontendURL,
		ValidFor:    humanDuration(m.emailTTL, "24 ore"),
	}
	msg, err := render(verificationSubject, verificationHTML, verificationText, data)
	if err != nil {
		return err
	}
	return m.deliver(ctx, to, msg, data.ActionURL)
}

// SendPasswordResetEmail mails the {frontend}/reset-password link.
func (m *Mailer) SendPasswordResetEmail(ctx context.Context, to, username, token string) error {
	data := templateData{
		Username:    username,
		ActionURL:   m.link("/reset-password", token),
		FrontendURL: m.frontendURL,
		ValidFor:    humanDuration(m.resetTTL, "1 ora"),
	}
	msg, err := render(passwordResetSubject, passwordResetHTML, passwordResetText, data)
	if err != nil {
		return err
	}
	return m.deliver(ctx, to, msg, data.ActionURL)
}

func (m *Mailer) deliver(ctx context.Context, to string, msg rendered, link string) error {
	log := logger.Enrich(ctx, m.logger).With(
		zap.String("to", logger.MaskEmail(to)),
		zap.String("subject", msg.Subject),
	)

	if m.client == nil {
		fields := []zap.Field{}
		if m.logLinksInDev {
			fields = append(fields, zap.String("link", link))
		}
		log.Info("Email not sent, Brevo not configured", fields...)
		return nil
	}

	messageID, err := m.client.Send(ctx, brevoMessage{
		Sender:      brevoContact{Email: m.senderEmail, Name: m.senderName},
		To:          []brevoContact{{Email: to, Name: localPart(to)}},
		Subject:     msg.Subject,
		HTMLContent: msg.HTML,
		TextContent: msg.Text,
	})
	if err != nil {
		log.Error("Email delivery failed", zap.Error(err))
		return fmt.Errorf("deliver email: %w", err)
	}

	log.Info("Email sent", zap.String("message_id", messageID))
	return nil
}

func (m *Mailer) link(path, token string) string {
	return m.frontendURL + path + "?token=" + url.QueryEscape(token)
}

func localPart(email string) string {
	if at := strings.IndexByte(email, '@'); at > 0 {
		return email[:at]
	}
	return email
}

func humanDuration(d time.Duration, fallback string) string {
	switch {
	case d <= 0:
		return fallback
	case d%time.Hour == 0 && d >= 2*time.Hour:
		return fmt.Sprintf("%d ore", int(d/time.Hour))
	case d == time.Hour:
		return "1 ora"
	default:
		return fmt.Sprintf("%d minuti", int(d.Round(time.Minute)/time.Minute))
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

var _ port.EmailSender = (*Mailer)(nil)
