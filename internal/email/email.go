// Package email sends transactional mail. The SendGrid backend is used in
// production; the console backend prints to logs for development and tests.
package email

import (
	"errors"
	"log"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// Sender delivers a single HTML message.
type Sender interface {
	Send(to, subject, htmlBody string) error
}

// SendgridSender sends through the SendGrid v3 API.
type SendgridSender struct {
	client   *sendgrid.Client
	from     *mail.Email
	fromAddr string
}

// NewSendgrid creates a sender using the given API key and from address.
func NewSendgrid(apiKey, fromAddr string) *SendgridSender {
	return &SendgridSender{
		client:   sendgrid.NewSendClient(apiKey),
		from:     mail.NewEmail("Attendly", fromAddr),
		fromAddr: fromAddr,
	}
}

func (s *SendgridSender) Send(to, subject, htmlBody string) error {
	msg := mail.NewSingleEmail(s.from, subject, mail.NewEmail("", to), "", htmlBody)
	resp, err := s.client.Send(msg)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		return errors.New("sendgrid rejected message: " + resp.Body)
	}
	return nil
}

// ConsoleSender logs messages instead of delivering them.
type ConsoleSender struct{}

func (ConsoleSender) Send(to, subject, htmlBody string) error {
	log.Printf("email to=%s subject=%q body=%q", to, subject, htmlBody)
	return nil
}
