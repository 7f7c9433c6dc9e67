package notify

import (
	"context"
	"fmt"
	"html"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"rentalshop-trusted/internal/logger"
)

// mailSender is the part of the SendGrid client we use.
type mailSender interface {
	Send(email *mail.SGMailV3) (*rest.Response, error)
}

// SendGrid e-mails alerts and reports to branch staff.
type SendGrid struct {
	client    mailSender
	fromEmail string
	fromName  string
	to        string
}

func NewSendGrid(apiKey, fromEmail, fromName, to string) *SendGrid {
	return &SendGrid{
		client:    sendgrid.NewSendClient(apiKey),
		fromEmail: fromEmail,
		fromName:  fromName,
		to:        to,
	}
}

// SendEmail sends one plain-text + HTML message.
func (s *SendGrid) SendEmail(ctx context.Context, to, subject, plainText, htmlContent string) error {
	from := mail.NewEmail(s.fromName, s.fromEmail)
	recipient := mail.NewEmail("", to)
	message := mail.NewSingleEmail(from, subject, recipient, plainText, htmlContent)

	logger.ExternalServiceCall("sendgrid", "send", "to", to, "subject", subject)
	response, err := s.client.Send(message)
	if err == nil && response.StatusCode >= 400 {
		err = fmt.Errorf("sendgrid error: status %d, body: %s", response.StatusCode, response.Body)
	}
	logger.ExternalServiceResult("sendgrid", "send", err, "to", to)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

func (s *SendGrid) Notify(ctx context.Context, a Alert) error {
	body := fmt.Sprintf("<p><strong>%s</strong></p><p>%s</p>", html.EscapeString(a.Title()), html.EscapeString(a.Body()))
	return s.SendEmail(ctx, s.to, a.Title(), a.Body(), body)
}
