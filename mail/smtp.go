// Package mail delivers lifecycle emails over SMTP, directly or through a
// kafka queue consumed by a worker.
package mail

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"

	auth "github.com/goliatone/go-authflow"
)

const (
	DefaultSMTPHost = "sandbox.smtp.mailtrap.io"
	DefaultSMTPPort = 2525
	DefaultFrom     = "test@test.com"
)

// SMTPConfig holds the SMTP server settings
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
	Timeout  time.Duration
}

// Renderer turns an email request into a message
type Renderer interface {
	Render(email auth.Email) (auth.Message, error)
}

// SMTPSender renders templates and sends them over SMTP.
type SMTPSender struct {
	cfg      SMTPConfig
	renderer Renderer
	// send is replaced in tests
	send func(ctx context.Context, from, to string, msg []byte) error
}

var _ auth.EmailSender = (*SMTPSender)(nil)

// NewSMTPSender creates a sender with mailtrap defaults for empty values
func NewSMTPSender(cfg SMTPConfig, renderer Renderer) *SMTPSender {
	if cfg.Host == "" {
		cfg.Host = DefaultSMTPHost
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultSMTPPort
	}
	if cfg.From == "" {
		cfg.From = DefaultFrom
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}

	s := &SMTPSender{cfg: cfg, renderer: renderer}
	s.send = s.sendSMTP
	return s
}

// Send implements auth.EmailSender.
func (s *SMTPSender) Send(ctx context.Context, email auth.Email) error {
	msg, err := s.renderer.Render(email)
	if err != nil {
		return err
	}

	if err := s.send(ctx, s.cfg.From, msg.To, s.compose(msg)); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to send email").
			WithMetadata(map[string]any{
				"kind": string(email.Kind),
				"host": s.cfg.Host,
			})
	}
	return nil
}

func (s *SMTPSender) compose(msg auth.Message) []byte {
	from := s.cfg.From
	if s.cfg.FromName != "" {
		from = fmt.Sprintf("%s <%s>", s.cfg.FromName, s.cfg.From)
	}

	return []byte(strings.Join([]string{
		"From: " + from,
		"To: " + msg.To,
		"Subject: " + msg.Subject,
		"MIME-Version: 1.0",
		`Content-Type: text/html; charset="UTF-8"`,
		"",
		msg.HTML,
	}, "\r\n"))
}

func (s *SMTPSender) sendSMTP(ctx context.Context, from, to string, msg []byte) error {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))

	dialer := &net.Dialer{Timeout: s.cfg.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}

	deadline := time.Now().Add(s.cfg.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetDeadline(deadline)

	c, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		conn.Close()
		return err
	}
	defer func() { _ = c.Quit() }()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: s.cfg.Host}); err != nil {
			return err
		}
	}

	if s.cfg.Username != "" {
		if err := c.Auth(smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)); err != nil {
			return err
		}
	}

	if err := c.Mail(from); err != nil {
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
