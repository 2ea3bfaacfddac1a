package notify

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"

	contracts "propel/contracts/mq"
	"propel/pkg/config"
	"propel/pkg/util"
)

func TestDonationReceiptMentionsFunding(t *testing.T) {
	msg, err := DonationReceiptMessage(contracts.DonationPayload{
		DonationID:    7,
		ProjectTitle:  "Clean water",
		DonorEmail:    "dave@example.com",
		DonorName:     "Dave",
		Amount:        "150.00",
		Currency:      "USD",
		ProjectStatus: "funded",
	})
	if err != nil {
		t.Fatalf("DonationReceiptMessage returned error: %v", err)
	}
	if msg.To != "dave@example.com" {
		t.Fatalf("to = %q", msg.To)
	}
	for _, want := range []string{"150.00 USD", "Clean water", "#7", "reached its goal"} {
		if !strings.Contains(msg.Body, want) {
			t.Fatalf("body missing %q:\n%s", want, msg.Body)
		}
	}
}

func TestWelcomeMessageByRole(t *testing.T) {
	msg, err := WelcomeMessage(contracts.UserRegisteredPayload{Email: "c@example.com", Name: "Carol", Role: "creator"})
	if err != nil {
		t.Fatalf("WelcomeMessage returned error: %v", err)
	}
	if !strings.Contains(msg.Body, "first project") {
		t.Fatalf("creator welcome missing project hint:\n%s", msg.Body)
	}
}

func TestNewMailerWithoutHostLogsOnly(t *testing.T) {
	m, err := NewMailer(config.MailConfig{}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewMailer returned error: %v", err)
	}
	if _, ok := m.(*LogMailer); !ok {
		t.Fatalf("mailer = %T, want *LogMailer", m)
	}
	if err := m.Send(context.Background(), Message{To: "x@example.com"}); err != nil {
		t.Fatalf("Send returned error: %v", err)
	}
}

type recordingClient struct {
	err  error
	sent []*mail.Msg
}

func (c *recordingClient) DialAndSendWithContext(_ context.Context, messages ...*mail.Msg) error {
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, messages...)
	return nil
}

func rawMessage(t *testing.T, m *mail.Msg) string {
	t.Helper()
	var buf bytes.Buffer
	if _, err := m.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	return buf.String()
}

func newTestMailer(client smtpClient) *SMTPMailer {
	return &SMTPMailer{client: client, from: "Propel <noreply@example.com>", logger: zap.NewNop()}
}

func TestNewMailerWithHostUsesSMTP(t *testing.T) {
	m, err := NewMailer(config.MailConfig{Host: "mail.example.com", User: "u", Password: "p", From: "noreply@example.com"}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewMailer returned error: %v", err)
	}
	if _, ok := m.(*SMTPMailer); !ok {
		t.Fatalf("mailer = %T, want *SMTPMailer", m)
	}
}

func TestSMTPMailerSendsPlainText(t *testing.T) {
	client := &recordingClient{}
	m := newTestMailer(client)

	if err := m.Send(context.Background(), Message{To: "a@example.com", Subject: "Hi", Body: "line1\nline2"}); err != nil {
		t.Fatalf("Send returned error: %v", err)
	}
	if len(client.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(client.sent))
	}
	raw := rawMessage(t, client.sent[0])
	for _, want := range []string{"Subject: Hi\r\n", "<a@example.com>", "line1", "line2", "text/plain"} {
		if !strings.Contains(raw, want) {
			t.Fatalf("message missing %q:\n%s", want, raw)
		}
	}
}

func TestSMTPMailerKeepsUserTextOutOfHeaders(t *testing.T) {
	msg, err := ProjectCreatedMessage(contracts.ProjectCreatedPayload{
		CreatorEmail: "c@example.com",
		Title:        "Wells\r\nBcc: victim@evil.org",
	})
	if err != nil {
		t.Fatalf("ProjectCreatedMessage returned error: %v", err)
	}

	client := &recordingClient{}
	if err := newTestMailer(client).Send(context.Background(), msg); err != nil {
		t.Fatalf("Send returned error: %v", err)
	}
	raw := rawMessage(t, client.sent[0])
	if strings.Contains(raw, "\nBcc:") {
		t.Fatalf("title injected a header:\n%s", raw)
	}
}

func TestSMTPMailerEncodesNonASCIISubject(t *testing.T) {
	client := &recordingClient{}
	err := newTestMailer(client).Send(context.Background(), Message{To: "a@example.com", Subject: "Agua para el año", Body: "x"})
	if err != nil {
		t.Fatalf("Send returned error: %v", err)
	}
	raw := rawMessage(t, client.sent[0])
	if strings.Contains(raw, "año") || !strings.Contains(strings.ToLower(raw), "=?utf-8?q?") {
		t.Fatalf("subject not RFC 2047 encoded:\n%s", raw)
	}
}

func TestSMTPMailerErrorClassification(t *testing.T) {
	m := newTestMailer(&recordingClient{err: errors.New("421 service not available")})
	err := m.Send(context.Background(), Message{To: "a@example.com"})
	if retryable, _ := util.IsRetryableError(err); !retryable {
		t.Fatalf("smtp failure should be retryable: %v", err)
	}

	err = newTestMailer(&recordingClient{}).Send(context.Background(), Message{To: "not an address"})
	if retryable, _ := util.IsRetryableError(err); retryable {
		t.Fatalf("bad recipient should not be retried: %v", err)
	}
}
