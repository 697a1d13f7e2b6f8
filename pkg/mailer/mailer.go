package mailer

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"

	"github.com/naufal-dev/fyp-api/pkg/config"
)

// Message is a single outgoing email.
type Message struct {
	ToName    string
	ToAddress string
	Subject   string
	Body      string
}

// Service sends messages asynchronously. Delivery is best effort;
// failures are logged and never surfaced to the caller.
type Service interface {
	Send(messages ...Message)
}

// Render executes a text template into a message body.
func Render(tmpl string, data interface{}) (string, error) {
	t, err := template.New("mail").Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("parse mail template: %w", err)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render mail template: %w", err)
	}
	return buf.String(), nil
}

// SendgridService delivers mail through the Sendgrid API.
type SendgridService struct {
	apiKey        string
	from          *sgmail.Email
	subjectPrefix string
	logger        *zap.Logger
}

var _ Service = (*SendgridService)(nil)

// NewSendgridService builds a Sendgrid-backed mail service.
func NewSendgridService(cfg config.MailConfig, logger *zap.Logger) *SendgridService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SendgridService{
		apiKey:        cfg.SendgridAPIKey,
		from:          sgmail.NewEmail(cfg.FromName, cfg.FromAddress),
		subjectPrefix: cfg.SubjectPrefix,
		logger:        logger,
	}
}

// Send delivers each message on its own goroutine.
func (s *SendgridService) Send(messages ...Message) {
	for _, msg := range messages {
		msg := msg
		go func() {
			m := sgmail.NewSingleEmail(
				s.from,
				s.subjectPrefix+" "+msg.Subject,
				sgmail.NewEmail(msg.ToName, msg.ToAddress),
				msg.Body,
				"",
			)
			client := sendgrid.NewSendClient(s.apiKey)
			resp, err := client.Send(m)
			if err != nil {
				s.logger.Warn("mail delivery failed", zap.String("to", msg.ToAddress), zap.Error(err))
				return
			}
			if resp.StatusCode >= 400 {
				s.logger.Warn("mail rejected by provider", zap.String("to", msg.ToAddress), zap.Int("status", resp.StatusCode))
			}
		}()
	}
}

// LogService writes messages to the log instead of sending them. Used in
// development and when mail is disabled.
type LogService struct {
	logger *zap.Logger
}

var _ Service = (*LogService)(nil)

// NewLogService builds a logging mail sink.
func NewLogService(logger *zap.Logger) *LogService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogService{logger: logger}
}

// Send logs each message at debug level.
func (s *LogService) Send(messages ...Message) {
	for _, msg := range messages {
		s.logger.Debug("mail (not sent)",
			zap.String("to", msg.ToAddress),
			zap.String("subject", msg.Subject),
			zap.String("body", msg.Body),
		)
	}
}
