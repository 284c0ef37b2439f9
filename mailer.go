package auth

import (
	"bytes"
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gofiber/template/django/v3"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
)

// EmailKind names one of the lifecycle email templates
type EmailKind string

const (
	EmailVerification         EmailKind = "verification"
	EmailWelcome              EmailKind = "welcome"
	EmailPasswordResetRequest EmailKind = "password_reset_request"
	EmailPasswordResetSuccess EmailKind = "password_reset_success"
)

var emailSubjects = map[EmailKind]string{
	EmailVerification:         "Verify your email",
	EmailWelcome:              "Welcome",
	EmailPasswordResetRequest: "Reset your password",
	EmailPasswordResetSuccess: "Password reset successful",
}

// Subject returns the subject line for the kind
func (k EmailKind) Subject() string {
	return emailSubjects[k]
}

// Email is a request to deliver one templated message.
type Email struct {
	Kind EmailKind         `json:"kind"`
	To   string            `json:"to"`
	Data map[string]string `json:"data,omitempty"`
}

// Message is a rendered email ready for a transport
type Message struct {
	From    string
	To      string
	Subject string
	HTML    string
}

// EmailSender delivers lifecycle emails
type EmailSender interface {
	Send(ctx context.Context, email Email) error
}

// EmailSenderFunc adapts a function to the EmailSender interface.
type EmailSenderFunc func(ctx context.Context, email Email) error

// Send implements EmailSender.
func (f EmailSenderFunc) Send(ctx context.Context, email Email) error {
	return f(ctx, email)
}

// TemplateRenderer renders lifecycle emails with the django engine.
type TemplateRenderer struct {
	engine *django.Engine
	from   string
}

// NewTemplateRenderer loads the embedded email templates.
func NewTemplateRenderer(from string) (*TemplateRenderer, error) {
	engine := django.NewFileSystem(http.FS(GetTemplatesFS()), ".html")
	if err := engine.Load(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load email templates")
	}
	return &TemplateRenderer{engine: engine, from: from}, nil
}

// Render produces the message for an email request
func (r *TemplateRenderer) Render(email Email) (Message, error) {
	subject := email.Kind.Subject()
	if subject == "" {
		return Message{}, goerrors.New("unknown email kind", goerrors.CategoryValidation).
			WithMetadata(map[string]any{"kind": string(email.Kind)})
	}

	binding := make(map[string]any, len(email.Data))
	for k, v := range email.Data {
		binding[k] = v
	}

	var buf bytes.Buffer
	if err := r.engine.Render(&buf, "email/"+string(email.Kind), binding); err != nil {
		return Message{}, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to render email").
			WithMetadata(map[string]any{"kind": string(email.Kind)})
	}

	return Message{
		From:    r.from,
		To:      email.To,
		Subject: subject,
		HTML:    buf.String(),
	}, nil
}

// LogEmailSender writes emails to the logger instead of delivering them.
// Meant for local development.
type LogEmailSender struct {
	Logger Logger
}

// Send implements EmailSender.
func (s LogEmailSender) Send(_ context.Context, email Email) error {
	logger := s.Logger
	if logger == nil {
		logger = defLogger{}
	}
	logger.Info("email not delivered, log transport",
		"kind", string(email.Kind),
		"to", email.To,
		"email", print.MaybePrettyJSON(email),
	)
	return nil
}

// Dispatcher delivers SendEmail side effects in the background. Failures
// are logged and recorded, never returned to the request.
type Dispatcher struct {
	sender   EmailSender
	timeout  time.Duration
	logger   Logger
	activity ActivitySink
	wg       sync.WaitGroup
}

// NewDispatcher creates a dispatcher for the given sender
func NewDispatcher(sender EmailSender, timeout time.Duration, logger Logger, activity ActivitySink) *Dispatcher {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if logger == nil {
		logger = defLogger{}
	}
	return &Dispatcher{
		sender:   sender,
		timeout:  timeout,
		logger:   logger,
		activity: normalizeActivitySink(activity),
	}
}

// Dispatch sends every email requested by effects without blocking.
func (d *Dispatcher) Dispatch(effects []SideEffect) {
	for _, email := range EmailsFrom(effects) {
		d.wg.Add(1)
		go func(email Email) {
			defer d.wg.Done()
			d.deliver(email)
		}(email)
	}
}

// Wait blocks until in-flight deliveries finish
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) deliver(email Email) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	if err := d.sender.Send(ctx, email); err != nil {
		d.logger.Error("failed to deliver email", "kind", string(email.Kind), "to", email.To, "error", err)
		recordActivity(ctx, d.activity, d.logger, ActivityEvent{
			EventType: ActivityEventMailFailed,
			Metadata: map[string]any{
				"kind": string(email.Kind),
			},
		})
	}
}
