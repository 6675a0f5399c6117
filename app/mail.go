package app

import (
	"context"
	_ "embed"
	"fmt"
	"html"
	"log/slog"
	"net/mail"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	sestypes "github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	gomail "github.com/wneessen/go-mail"
)

// EmailSender sends one message. Implementations can be swapped (SMTP,
// SendGrid, SES) without changing callers.
type EmailSender interface {
	Send(ctx context.Context, msg EmailMessage) error
}

type EmailMessage struct {
	To          string
	ToName      string
	ReplyTo     string
	ReplyToName string
	Subject     string
	Body        string // Plain text body
	HTML        string // Optional HTML body
}

// Sender identity shared by every EmailSender.
type SenderConfig struct {
	FromEmail string
	FromName  string
}

func (c SenderConfig) withDefaults() SenderConfig {
	if c.FromName == "" {
		c.FromName = "PSPH"
	}
	return c
}

// StubEmailSender logs messages instead of sending them.
type StubEmailSender struct {
	logger *slog.Logger
}

func NewStubEmailSender(logger *slog.Logger) *StubEmailSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &StubEmailSender{logger: logger}
}

func (s *StubEmailSender) Send(ctx context.Context, msg EmailMessage) error {
	s.logger.Info("Stub email sender: would send email", "to", msg.To, "subject", msg.Subject)
	return nil
}

// SendGridSender sends through the SendGrid v3 API.
type SendGridSender struct {
	client *sendgrid.Client
	from   SenderConfig
}

// NewSendGridSender returns nil when apiKey is empty.
func NewSendGridSender(apiKey string, from SenderConfig) *SendGridSender {
	if apiKey == "" {
		return nil
	}
	return &SendGridSender{client: sendgrid.NewSendClient(apiKey), from: from.withDefaults()}
}

func (s *SendGridSender) Send(ctx context.Context, msg EmailMessage) error {
	if s.client == nil {
		return fmt.Errorf("mail: sendgrid client not configured")
	}
	from := sgmail.NewEmail(s.from.FromName, s.from.FromEmail)
	to := sgmail.NewEmail(msg.ToName, msg.To)
	htmlBody := msg.HTML
	if htmlBody == "" {
		htmlBody = msg.Body
	}
	message := sgmail.NewSingleEmail(from, msg.Subject, to, msg.Body, htmlBody)
	if msg.ReplyTo != "" {
		message.SetReplyTo(sgmail.NewEmail(msg.ReplyToName, msg.ReplyTo))
	}

	response, err := s.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("mail: sendgrid send failed: %w", err)
	}
	if response.StatusCode >= 400 {
		return fmt.Errorf("mail: sendgrid returned status %d", response.StatusCode)
	}
	return nil
}

// sesAPI is the part of the SES v2 client used by SESSender.
type sesAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESSender sends through AWS SES.
type SESSender struct {
	client sesAPI
	from   SenderConfig
}

// NewSESSender returns nil when client is nil.
func NewSESSender(client *sesv2.Client, from SenderConfig) *SESSender {
	if client == nil {
		return nil
	}
	return &SESSender{client: client, from: from.withDefaults()}
}

func (s *SESSender) input(msg EmailMessage) *sesv2.SendEmailInput {
	fromAddress := (&mail.Address{Name: s.from.FromName, Address: s.from.FromEmail}).String()
	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(fromAddress),
		Destination: &sestypes.Destination{
			ToAddresses: []string{msg.To},
		},
		Content: &sestypes.EmailContent{
			Simple: &sestypes.Message{
				Subject: &sestypes.Content{
					Data:    aws.String(msg.Subject),
					Charset: aws.String("UTF-8"),
				},
				Body: &sestypes.Body{},
			},
		},
	}
	if msg.ReplyTo != "" {
		input.ReplyToAddresses = []string{(&mail.Address{Name: msg.ReplyToName, Address: msg.ReplyTo}).String()}
	}
	if msg.Body != "" {
		input.Content.Simple.Body.Text = &sestypes.Content{Data: aws.String(msg.Body), Charset: aws.String("UTF-8")}
	}
	if msg.HTML != "" {
		input.Content.Simple.Body.Html = &sestypes.Content{Data: aws.String(msg.HTML), Charset: aws.String("UTF-8")}
	}
	return input
}

func (s *SESSender) Send(ctx context.Context, msg EmailMessage) error {
	if s.client == nil {
		return fmt.Errorf("mail: SES client not configured")
	}
	if _, err := s.client.SendEmail(ctx, s.input(msg)); err != nil {
		return fmt.Errorf("mail: SES send failed: %w", err)
	}
	return nil
}

// SMTPConfig configures SMTPSender. Port 465 uses implicit TLS; any other
// port upgrades with STARTTLS when the server offers it. Timeout bounds each
// exchange with the server.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	Timeout  time.Duration
}

// SMTPSender relays through an SMTP server.
type SMTPSender struct {
	cfg  SMTPConfig
	from SenderConfig
}

func NewSMTPSender(cfg SMTPConfig, from SenderConfig) *SMTPSender {
	if cfg.Port <= 0 {
		cfg.Port = 465
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &SMTPSender{cfg: cfg, from: from.withDefaults()}
}

func (s *SMTPSender) clientOptions() []gomail.Option {
	opts := []gomail.Option{
		gomail.WithPort(s.cfg.Port),
		gomail.WithTimeout(s.cfg.Timeout),
	}
	if s.cfg.Port == 465 {
		opts = append(opts, gomail.WithSSL())
	} else {
		opts = append(opts, gomail.WithTLSPolicy(gomail.TLSOpportunistic))
	}
	if s.cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(s.cfg.Username),
			gomail.WithPassword(s.cfg.Password),
		)
	}
	return opts
}

// message builds a multipart/alternative message: the text body, plus the
// HTML body when there is one.
func (s *SMTPSender) message(msg EmailMessage, now time.Time) (*gomail.Msg, error) {
	m := gomail.NewMsg()
	if err := m.FromFormat(s.from.FromName, s.from.FromEmail); err != nil {
		return nil, fmt.Errorf("from address: %w", err)
	}
	if err := m.AddToFormat(msg.ToName, msg.To); err != nil {
		return nil, fmt.Errorf("to address: %w", err)
	}
	if msg.ReplyTo != "" {
		if err := m.ReplyToFormat(msg.ReplyToName, msg.ReplyTo); err != nil {
			return nil, fmt.Errorf("reply-to address: %w", err)
		}
	}
	m.Subject(msg.Subject)
	m.SetDateWithValue(now)
	m.SetBodyString(gomail.TypeTextPlain, msg.Body)
	if msg.HTML != "" {
		m.AddAlternativeString(gomail.TypeTextHTML, msg.HTML)
	}
	return m, nil
}

func (s *SMTPSender) Send(ctx context.Context, msg EmailMessage) error {
	m, err := s.message(msg, time.Now())
	if err != nil {
		return fmt.Errorf("mail: building message: %w", err)
	}
	client, err := gomail.NewClient(s.cfg.Host, s.clientOptions()...)
	if err != nil {
		return fmt.Errorf("mail: smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("mail: sending via %s: %w", s.cfg.Host, err)
	}
	return nil
}

//go:embed emails/confirmation-email.html
var defaultConfirmationTemplate string

// LoadConfirmationTemplate reads the confirmation email template from path,
// or returns the built-in template when path is empty.
func LoadConfirmationTemplate(path string) (string, error) {
	if path == "" {
		return defaultConfirmationTemplate, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

type MailRelayConfig struct {
	AdminEmail string
	AdminName  string
	// Template is the confirmation email HTML with {{FULL_NAME}},
	// {{APPOINTMENT}} and {{TOPIC}} placeholders.
	Template string
}

// MailRelay turns an appointment request into a confirmation for the
// visitor and a notification for staff.
type MailRelay struct {
	sender  EmailSender
	cfg     MailRelayConfig
	metrics *Metrics
}

func NewMailRelay(sender EmailSender, cfg MailRelayConfig, metrics *Metrics) *MailRelay {
	if cfg.AdminName == "" {
		cfg.AdminName = "PSPH"
	}
	return &MailRelay{sender: sender, cfg: cfg, metrics: metrics}
}

func (m *MailRelay) ConfirmationMessage(a Appointment) EmailMessage {
	body := strings.NewReplacer(
		"{{FULL_NAME}}", html.EscapeString(a.FullName()),
		"{{APPOINTMENT}}", html.EscapeString(a.Time),
		"{{TOPIC}}", html.EscapeString(a.Topic),
	).Replace(m.cfg.Template)
	if body == "" {
		body = "<p>Hello " + html.EscapeString(a.FirstName) + ",</p>" +
			"<p>Your appointment: " + html.EscapeString(a.Time) + "</p>" +
			"<p>Topic: " + html.EscapeString(a.Topic) + "</p>"
	}
	return EmailMessage{
		To:          a.Email,
		ToName:      a.FullName(),
		ReplyTo:     m.cfg.AdminEmail,
		ReplyToName: m.cfg.AdminName,
		Subject:     "Your Appointment is Confirmed",
		Body:        fmt.Sprintf("Hello %s,\n\nAppointment: %s\nTopic: %s", a.FirstName, a.Time, a.Topic),
		HTML:        body,
	}
}

func (m *MailRelay) NotificationMessage(a Appointment) EmailMessage {
	text := fmt.Sprintf("Name: %s\nEmail: %s\nPhone: %s\nDistrict: %s\nSchool: %s\nTopic: %s\nAppointment: %s\n",
		a.FullName(), a.Email, a.Phone, a.SchoolDistrict, a.School, a.Topic, a.Time)
	return EmailMessage{
		To:          m.cfg.AdminEmail,
		ToName:      m.cfg.AdminName,
		ReplyTo:     a.Email,
		ReplyToName: a.FullName(),
		Subject:     "New Appointment: " + a.FullName(),
		Body:        text,
		HTML:        strings.ReplaceAll(html.EscapeString(text), "\n", "<br />\n"),
	}
}

// Submit sends the confirmation and then the staff notification. The
// notification is not attempted if the confirmation fails.
func (m *MailRelay) Submit(ctx context.Context, a Appointment) error {
	if err := m.send(ctx, "confirmation", m.ConfirmationMessage(a)); err != nil {
		return err
	}
	return m.send(ctx, "notification", m.NotificationMessage(a))
}

func (m *MailRelay) send(ctx context.Context, kind string, msg EmailMessage) error {
	if err := m.sender.Send(ctx, msg); err != nil {
		m.metrics.ObserveMail(kind, "error")
		log(ctx).Error("Mailer exception", "kind", kind, "to", msg.To, "error", err)
		return fmt.Errorf("sending %s: %w", kind, err)
	}
	m.metrics.ObserveMail(kind, "ok")
	log(ctx).Info("Email sent", "kind", kind, "to", msg.To, "subject", msg.Subject)
	return nil
}
