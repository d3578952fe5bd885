package mail

import (
	"fmt"
	"log"
	"net/smtp"
)

// Mailer sends outbound notification mail.
type Mailer interface {
	Send(to, subject, html string) error
}

// SMTPMailer sends mail through a plain SMTP relay.
type SMTPMailer struct {
	host string
	port string
	from string
}

// NewSMTPMailer creates a mailer for the given relay. An empty host yields a
// mailer that logs instead of sending, so local runs work without a relay.
func NewSMTPMailer(host, port, from string) *SMTPMailer {
	return &SMTPMailer{host: host, port: port, from: from}
}

// Send delivers a single HTML message.
func (m *SMTPMailer) Send(to, subject, html string) error {
	if m.host == "" {
		log.Printf("mail (no SMTP relay configured) to=%s subject=%q", to, subject)
		return nil
	}

	msg := "From: " + m.from + "\r\n" +
		"To: " + to + "\r\n" +
		"Subject: " + subject + "\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: text/html; charset=\"UTF-8\"\r\n" +
		"\r\n" +
		html

	addr := m.host + ":" + m.port
	if err := smtp.SendMail(addr, nil, m.from, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("send mail to %s: %w", to, err)
	}
	return nil
}
