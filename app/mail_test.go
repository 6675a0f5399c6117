package app

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/mail"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockSender struct {
	mock.Mock
}

func (m *mockSender) Send(ctx context.Context, msg EmailMessage) error {
	return m.Called(ctx, msg).Error(0)
}

func testAppointment() Appointment {
	return ParseAppointment(validForm())
}

func TestMailRelay_ConfirmationMessage(t *testing.T) {
	relay := NewMailRelay(nil, MailRelayConfig{
		AdminEmail: "hello@psph.org",
		Template:   "<h1>{{FULL_NAME}}</h1><p>{{APPOINTMENT}}</p><p>{{TOPIC}}</p>",
	}, nil)

	a := testAppointment()
	a.Topic = "Bus <routes> & stops"
	msg := relay.ConfirmationMessage(a)

	assert.Equal(t, "ada@example.com", msg.To)
	assert.Equal(t, "Ada Lovelace", msg.ToName)
	assert.Equal(t, "hello@psph.org", msg.ReplyTo)
	assert.Equal(t, "PSPH", msg.ReplyToName)
	assert.Equal(t, "Your Appointment is Confirmed", msg.Subject)
	assert.Equal(t, "<h1>Ada Lovelace</h1><p>2026-11-02 10:00</p><p>Bus &lt;routes&gt; &amp; stops</p>", msg.HTML)
	assert.Equal(t, "Hello Ada,\n\nAppointment: 2026-11-02 10:00\nTopic: Bus <routes> & stops", msg.Body)
}

func TestMailRelay_ConfirmationFallsBackWithoutTemplate(t *testing.T) {
	relay := NewMailRelay(nil, MailRelayConfig{AdminEmail: "hello@psph.org"}, nil)

	msg := relay.ConfirmationMessage(testAppointment())
	assert.Equal(t, "<p>Hello Ada,</p><p>Your appointment: 2026-11-02 10:00</p><p>Topic: Enrollment</p>", msg.HTML)
}

func TestMailRelay_DefaultTemplateHasPlaceholders(t *testing.T) {
	tmpl, err := LoadConfirmationTemplate("")
	require.NoError(t, err)
	for _, token := range []string{"{{FULL_NAME}}", "{{APPOINTMENT}}", "{{TOPIC}}"} {
		assert.Contains(t, tmpl, token)
	}

	_, err = LoadConfirmationTemplate("/does/not/exist.html")
	assert.Error(t, err)
}

func TestMailRelay_NotificationMessage(t *testing.T) {
	relay := NewMailRelay(nil, MailRelayConfig{AdminEmail: "hello@psph.org"}, nil)

	msg := relay.NotificationMessage(testAppointment())
	assert.Equal(t, "hello@psph.org", msg.To)
	assert.Equal(t, "ada@example.com", msg.ReplyTo)
	assert.Equal(t, "Ada Lovelace", msg.ReplyToName)
	assert.Equal(t, "New Appointment: Ada Lovelace", msg.Subject)
	assert.Contains(t, msg.Body, "District: Austin ISD\nSchool: Lincoln High\n")
	assert.Contains(t, msg.HTML, "Name: Ada Lovelace<br />\nEmail: ada@example.com<br />\n")
}

func TestMailRelay_SubmitSendsBoth(t *testing.T) {
	sender := new(mockSender)
	metrics := NewMetrics(prometheus.NewRegistry())
	relay := NewMailRelay(sender, MailRelayConfig{AdminEmail: "hello@psph.org"}, metrics)

	sender.On("Send", mock.Anything, mock.MatchedBy(func(m EmailMessage) bool {
		return m.To == "ada@example.com"
	})).Return(nil).Once()
	sender.On("Send", mock.Anything, mock.MatchedBy(func(m EmailMessage) bool {
		return m.To == "hello@psph.org"
	})).Return(nil).Once()

	require.NoError(t, relay.Submit(context.Background(), testAppointment()))
	sender.AssertExpectations(t)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.mailTotal.WithLabelValues("confirmation", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.mailTotal.WithLabelValues("notification", "ok")))
}

func TestMailRelay_SubmitStopsOnConfirmationFailure(t *testing.T) {
	sender := new(mockSender)
	relay := NewMailRelay(sender, MailRelayConfig{AdminEmail: "hello@psph.org"}, nil)
	sender.On("Send", mock.Anything, mock.Anything).Return(errors.New("smtp down")).Once()

	err := relay.Submit(context.Background(), testAppointment())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sending confirmation")
	sender.AssertNumberOfCalls(t, "Send", 1)
}

func TestSMTPSender_Message(t *testing.T) {
	s := NewSMTPSender(SMTPConfig{Host: "mail.example.com"}, SenderConfig{FromEmail: "appointment@psph.org"})
	msg := EmailMessage{
		To:      "ada@example.com",
		ToName:  "Ada Lovelace",
		ReplyTo: "hello@psph.org",
		Subject: "Cita confirmada ✓",
		Body:    "Hello Ada",
		HTML:    "<p>Hello Ada</p>",
	}
	m, err := s.message(msg, time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	var raw bytes.Buffer
	_, err = m.WriteTo(&raw)
	require.NoError(t, err)

	parsed, err := mail.ReadMessage(&raw)
	require.NoError(t, err)
	assert.Equal(t, `"PSPH" <appointment@psph.org>`, parsed.Header.Get("From"))
	assert.Equal(t, `"Ada Lovelace" <ada@example.com>`, parsed.Header.Get("To"))
	assert.Equal(t, "<hello@psph.org>", parsed.Header.Get("Reply-To"))
	date, err := parsed.Header.Date()
	require.NoError(t, err)
	assert.True(t, date.Equal(time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)))

	subject, err := new(mime.WordDecoder).DecodeHeader(parsed.Header.Get("Subject"))
	require.NoError(t, err)
	assert.Equal(t, "Cita confirmada ✓", subject)

	mediaType, params, err := mime.ParseMediaType(parsed.Header.Get("Content-Type"))
	require.NoError(t, err)
	assert.Equal(t, "multipart/alternative", mediaType)

	mr := multipart.NewReader(parsed.Body, params["boundary"])
	var types, bodies []string
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		data, err := io.ReadAll(part)
		require.NoError(t, err)
		types = append(types, strings.Split(part.Header.Get("Content-Type"), ";")[0])
		bodies = append(bodies, strings.TrimSpace(string(data)))
	}
	assert.Equal(t, []string{"text/plain", "text/html"}, types)
	assert.Equal(t, []string{"Hello Ada", "<p>Hello Ada</p>"}, bodies)
}

func TestSMTPSender_MessageRejectsBadAddress(t *testing.T) {
	s := NewSMTPSender(SMTPConfig{Host: "mail.example.com"}, SenderConfig{FromEmail: "appointment@psph.org"})
	_, err := s.message(EmailMessage{To: "not an address", Subject: "x", Body: "x"}, time.Now())
	assert.Error(t, err)
}

func TestSMTPSender_Defaults(t *testing.T) {
	s := NewSMTPSender(SMTPConfig{Host: "mail.example.com"}, SenderConfig{})
	assert.Equal(t, 465, s.cfg.Port)
	assert.Equal(t, 30*time.Second, s.cfg.Timeout)
	assert.Equal(t, "PSPH", s.from.FromName)
	assert.Len(t, s.clientOptions(), 3, "port, timeout and implicit TLS")

	s = NewSMTPSender(SMTPConfig{Host: "mail.example.com", Port: 587, Username: "u", Password: "p"}, SenderConfig{})
	assert.Len(t, s.clientOptions(), 6, "port, timeout, STARTTLS policy and auth")
}

func TestSMTPSender_SendHonorsContext(t *testing.T) {
	s := NewSMTPSender(SMTPConfig{Host: "127.0.0.1", Port: 2525}, SenderConfig{FromEmail: "appointment@psph.org"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Send(ctx, EmailMessage{To: "ada@example.com", Subject: "x", Body: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mail: sending via 127.0.0.1")
}

type fakeSES struct {
	input *sesv2.SendEmailInput
	err   error
}

func (f *fakeSES) SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.input = params
	return &sesv2.SendEmailOutput{}, f.err
}

func TestSESSender_Send(t *testing.T) {
	client := &fakeSES{}
	sender := &SESSender{client: client, from: SenderConfig{FromEmail: "appointment@psph.org"}.withDefaults()}

	err := sender.Send(context.Background(), EmailMessage{
		To:          "ada@example.com",
		ReplyTo:     "hello@psph.org",
		ReplyToName: "PSPH",
		Subject:     "Hi",
		Body:        "text",
		HTML:        "<p>html</p>",
	})
	require.NoError(t, err)
	require.NotNil(t, client.input)
	assert.Equal(t, `"PSPH" <appointment@psph.org>`, *client.input.FromEmailAddress)
	assert.Equal(t, []string{"ada@example.com"}, client.input.Destination.ToAddresses)
	assert.Equal(t, []string{`"PSPH" <hello@psph.org>`}, client.input.ReplyToAddresses)
	assert.Equal(t, "text", *client.input.Content.Simple.Body.Text.Data)
	assert.Equal(t, "<p>html</p>", *client.input.Content.Simple.Body.Html.Data)

	client.err = errors.New("throttled")
	assert.Error(t, sender.Send(context.Background(), EmailMessage{To: "ada@example.com"}))
}

func TestNewSenders_RequireCredentials(t *testing.T) {
	assert.Nil(t, NewSendGridSender("", SenderConfig{}))
	assert.NotNil(t, NewSendGridSender("SG.key", SenderConfig{}))
	assert.Nil(t, NewSESSender(nil, SenderConfig{}))
}

func TestStubEmailSender(t *testing.T) {
	assert.NoError(t, NewStubEmailSender(nil).Send(context.Background(), EmailMessage{To: "x@example.com"}))
}
