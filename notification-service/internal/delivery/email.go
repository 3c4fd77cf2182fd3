// Package delivery sends stored notifications over e-mail, SMS and push.
package delivery

import (
	"context"
	"errors"

	"gopkg.in/gomail.v2"

	"opsuite/notification-service/internal/models"
)

var ErrNoRecipient = errors.New("notification has no recipient")

type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

type Email struct {
	dialer dialer
	from   string
}

func NewEmail(host string, port int, username, password, from string) *Email {
	return &Email{dialer: gomail.NewDialer(host, port, username, password), from: from}
}

func (e *Email) Deliver(_ context.Context, n *models.Notification) error {
	if n.Recipient == "" {
		return ErrNoRecipient
	}
	msg := gomail.NewMessage()
	msg.SetHeader("From", e.from)
	msg.SetHeader("To", n.Recipient)
	msg.SetHeader("Subject", n.Title)
	msg.SetBody("text/plain", n.Message)
	return e.dialer.DialAndSend(msg)
}
