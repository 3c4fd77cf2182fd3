package services

import (
	"fmt"

	"gopkg.in/gomail.v2"
)

type EmailService interface {
	SendTemporaryPassword(email, tenantName, code string) error
}

type SMTPMailer struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTPMailer(host string, port int, username, password, from string) *SMTPMailer {
	return &SMTPMailer{
		dialer: gomail.NewDialer(host, port, username, password),
		from:   from,
	}
}

func (m *SMTPMailer) SendTemporaryPassword(email, tenantName, code string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", email)
	msg.SetHeader("Subject", fmt.Sprintf("Your %s account", tenantName))
	msg.SetBody("text/plain", fmt.Sprintf(
		"An account was created for you on %s.\n\nTemporary password: %s\n\nYou will be asked to choose a new password after signing in.",
		tenantName, code,
	))
	return m.dialer.DialAndSend(msg)
}
