// Package notify renders and delivers notification emails.
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"propel/pkg/config"
	"propel/pkg/logger"
	"propel/pkg/util"
)

const sendTimeout = 30 * time.Second

type Message struct {
	To      string
	Subject string
	Body    string
}

type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// smtpClient is the part of *mail.Client the mailer needs.
type smtpClient interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// NewMailer returns an SMTP mailer when a host is configured and a log-only mailer otherwise.
func NewMailer(cfg config.MailConfig, log *zap.Logger) (Mailer, error) {
	if cfg.Host == "" {
		log.Info("Mail host not configured, notifications will only be logged")
		return &LogMailer{logger: log}, nil
	}
	port := cfg.Port
	if port == 0 {
		port = 587
	}

	opts := []mail.Option{
		mail.WithPort(port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
		mail.WithTimeout(sendTimeout),
	}
	if cfg.User != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.User),
			mail.WithPassword(cfg.Password),
		)
	}
	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("create smtp client: %w", err)
	}
	return &SMTPMailer{client: client, from: cfg.From, logger: log}, nil
}

type SMTPMailer struct {
	client smtpClient
	from   string
	logger *zap.Logger
}

func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	mm, err := buildMessage(m.from, msg)
	if err != nil {
		return err
	}
	if err := m.client.DialAndSendWithContext(ctx, mm); err != nil {
		return fmt.Errorf("smtp send to %s: %w", msg.To, err)
	}
	logger.WithTrace(ctx, m.logger).Info("Email sent", zap.String("to", msg.To), zap.String("subject", msg.Subject))
	return nil
}

// buildMessage assembles a plain-text message. Header text never carries a
// line break; go-mail encodes non-ASCII header text per RFC 2047.
func buildMessage(from string, msg Message) (*mail.Msg, error) {
	mm := mail.NewMsg()
	if err := mm.From(from); err != nil {
		return nil, util.Permanent("invalid_sender", fmt.Errorf("sender %q: %w", from, err))
	}
	if err := mm.To(headerText(msg.To)); err != nil {
		return nil, util.Permanent("invalid_recipient", fmt.Errorf("recipient %q: %w", msg.To, err))
	}
	mm.Subject(headerText(msg.Subject))
	mm.SetDate()
	mm.SetMessageID()
	mm.SetBodyString(mail.TypeTextPlain, msg.Body)
	return mm, nil
}

var lineBreaks = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ")

func headerText(s string) string {
	return strings.TrimSpace(lineBreaks.Replace(s))
}

// LogMailer writes messages to the log instead of sending them.
type LogMailer struct {
	logger *zap.Logger
}

func (m *LogMailer) Send(ctx context.Context, msg Message) error {
	logger.WithTrace(ctx, m.logger).Info("Email (log only)",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.Int("body_size", len(msg.Body)),
	)
	return nil
}
