package moderation

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// SMTPMailer delivers messages over SMTP with STARTTLS and plain auth.
type SMTPMailer struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
	Logger   Logger

	dialTimeout time.Duration
	sendTimeout time.Duration
}

// NewSMTPMailer builds a mailer for the given server. From defaults to the
// username when empty.
func NewSMTPMailer(host string, port int, username, password, from string) *SMTPMailer {
	if from == "" {
		from = username
	}
	return &SMTPMailer{
		Host:        host,
		Port:        port,
		Username:    username,
		Password:    password,
		From:        from,
		Logger:      defLogger{},
		dialTimeout: 8 * time.Second,
		sendTimeout: 15 * time.Second,
	}
}

// Send delivers a single message. The context deadline, when earlier than the
// configured send timeout, bounds the whole exchange.
func (m *SMTPMailer) Send(ctx context.Context, msg MailMessage) error {
	if msg.To == "" {
		return goerrors.New("mail message requires a recipient", goerrors.CategoryValidation).
			WithTextCode("MAIL_NO_RECIPIENT").
			WithCode(goerrors.CodeBadRequest)
	}

	fromHeader := m.From
	if m.FromName != "" {
		fromHeader = fmt.Sprintf("%s <%s>", m.FromName, m.From)
	}

	body := strings.Join([]string{
		fmt.Sprintf("From: %s", fromHeader),
		fmt.Sprintf("To: %s", msg.To),
		fmt.Sprintf("Subject: %s", msg.Subject),
		"MIME-Version: 1.0",
		`Content-Type: text/plain; charset="UTF-8"`,
		"",
		msg.Body,
	}, "\r\n")

	if err := m.send(ctx, msg.To, []byte(body)); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "smtp delivery failed").
			WithTextCode("MAIL_DELIVERY_FAILED").
			WithCode(goerrors.CodeInternal).
			WithMetadata(map[string]any{"to": msg.To})
	}

	m.Logger.Info("mail sent", "to", msg.To, "subject", msg.Subject)
	return nil
}

func (m *SMTPMailer) send(ctx context.Context, to string, msg []byte) error {
	addr := fmt.Sprintf("%s:%d", m.Host, m.Port)

	conn, err := net.DialTimeout("tcp", addr, m.dialTimeout)
	if err != nil {
		return err
	}

	deadline := time.Now().Add(m.sendTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	// the deadline covers the whole SMTP exchange, not just the dial
	_ = conn.SetDeadline(deadline)

	c, err := smtp.NewClient(conn, m.Host)
	if err != nil {
		return err
	}
	defer func() { _ = c.Quit() }()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: m.Host}); err != nil {
			return err
		}
	}

	if m.Username != "" {
		auth := smtp.PlainAuth("", m.Username, m.Password, m.Host)
		if err := c.Auth(auth); err != nil {
			return err
		}
	}

	if err := c.Mail(m.From); err != nil {
		return err
	}
	if err := c.Rcpt(to); err != nil {
		return err
	}

	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

// NoopMailer logs instead of delivering. Useful in development and tests.
type NoopMailer struct {
	Logger Logger
}

func NewNoopMailer() *NoopMailer {
	return &NoopMailer{Logger: defLogger{}}
}

func (m *NoopMailer) Send(_ context.Context, msg MailMessage) error {
	logger := m.Logger
	if logger == nil {
		logger = defLogger{}
	}
	logger.Info("mail suppressed", "to", msg.To, "subject", msg.Subject)
	return nil
}
