// Package mail sends transactional email over SMTP.
package mail

import (
	"errors"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/fetchify-app/fetchify/internal/config"

	log "github.com/sirupsen/logrus"
)

// Mailer delivers a single HTML message.
type Mailer interface {
	Send(to, subject, htmlBody string) error
}

// SMTPMailer sends mail through a configured SMTP relay.
type SMTPMailer struct {
	cfg config.SMTPConfig
}

// NewSMTPMailer constructs an SMTPMailer from config.
func NewSMTPMailer(cfg config.SMTPConfig) *SMTPMailer {
	return &SMTPMailer{cfg: cfg}
}

// Send delivers one HTML email to a single recipient.
func (m *SMTPMailer) Send(to, subject, htmlBody string) error {
	if m == nil || strings.TrimSpace(m.cfg.Host) == "" {
		return errors.New("mail: smtp not configured")
	}

	sender := m.cfg.From
	if strings.TrimSpace(sender) == "" {
		sender = "no-reply@localhost"
	}

	var auth smtp.Auth
	if m.cfg.Username != "" && m.cfg.Password != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	port := m.cfg.Port
	if port == 0 {
		port = 587
	}
	addr := fmt.Sprintf("%s:%d", m.cfg.Host, port)

	msg := []byte(
		fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n", sender, to, subject) +
			"MIME-Version: 1.0\r\n" +
			"Content-Type: text/html; charset=UTF-8\r\n\r\n" +
			htmlBody,
	)

	if err := smtp.SendMail(addr, auth, sender, []string{to}, msg); err != nil {
		log.WithError(err).Warnf("mail: send to %s via %s failed", to, addr)
		return err
	}
	log.Infof("mail: sent to %s via %s", to, addr)
	return nil
}

// NopMailer discards all messages. Used when SMTP is not configured and in
// tests.
type NopMailer struct{}

// Send discards the message.
func (NopMailer) Send(to, subject, htmlBody string) error {
	log.Debugf("mail: discarding message to %s (%s)", to, subject)
	return nil
}
