package notify

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"mime/quotedprintable"
	"net"
	"net/mail"
	"net/smtp"
	"strconv"
	"strings"
	"time"
)

// Message is one outbound notification.
type Message struct {
	FromAddress string
	FromName    string
	To          []string
	Subject     string
	HTMLBody    string
}

// Mailer submits a message for delivery. Implementations do not retry.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// GraphSender is satisfied by *directory.Client.
type GraphSender interface {
	SendMail(ctx context.Context, fromAddress, fromName string, to []string, subject, htmlBody string) error
}

// GraphMailer sends through the Microsoft Graph sendMail action of the
// sender's mailbox.
type GraphMailer struct {
	Client GraphSender
}

func (m GraphMailer) Send(ctx context.Context, msg Message) error {
	if m.Client == nil {
		return errors.New("graph mailer has no client")
	}
	return m.Client.SendMail(ctx, msg.FromAddress, msg.FromName, msg.To, msg.Subject, msg.HTMLBody)
}

// SMTPMailer sends through an authenticated SMTP relay using STARTTLS when the
// server offers it.
type SMTPMailer struct {
	Host     string
	Port     int
	Username string
	Password string

	// sendMail is swapped in tests.
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
	now      func() time.Time
}

func NewSMTPMailer(host string, port int, username, password string) (*SMTPMailer, error) {
	host = strings.TrimSpace(host)
	if host == "" {
		return nil, errors.New("smtp host is required")
	}
	if port <= 0 {
		port = 587
	}
	return &SMTPMailer{
		Host:     host,
		Port:     port,
		Username: strings.TrimSpace(username),
		Password: password,
		sendMail: smtp.SendMail,
		now:      time.Now,
	}, nil
}

func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(msg.To) == 0 {
		return errors.New("at least one recipient is required")
	}
	var auth smtp.Auth
	if m.Username != "" {
		auth = smtp.PlainAuth("", m.Username, m.Password, m.Host)
	}
	body, err := m.compose(msg)
	if err != nil {
		return err
	}
	addr := net.JoinHostPort(m.Host, strconv.Itoa(m.Port))
	if err := m.sendMail(addr, auth, msg.FromAddress, msg.To, body); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

// compose builds an RFC 5322 message. The HTML body is quoted-printable so no
// line exceeds the 998 octet limit and non-ASCII text survives 7-bit relays.
func (m *SMTPMailer) compose(msg Message) ([]byte, error) {
	from := (&mail.Address{Name: msg.FromName, Address: msg.FromAddress}).String()
	now := time.Now
	if m.now != nil {
		now = m.now
	}

	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + strings.Join(msg.To, ", ") + "\r\n")
	b.WriteString("Subject: " + mime.QEncoding.Encode("utf-8", msg.Subject) + "\r\n")
	b.WriteString("Date: " + now().Format(time.RFC1123Z) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	b.WriteString("Content-Transfer-Encoding: quoted-printable\r\n")
	b.WriteString("\r\n")
	qp := quotedprintable.NewWriter(&b)
	if _, err := qp.Write([]byte(msg.HTMLBody)); err != nil {
		return nil, fmt.Errorf("encode body: %w", err)
	}
	if err := qp.Close(); err != nil {
		return nil, fmt.Errorf("encode body: %w", err)
	}
	b.WriteString("\r\n")
	return []byte(b.String()), nil
}

// LogMailer records messages instead of sending them. Used for dry runs.
type LogMailer struct {
	Logf func(msg string, args ...any)
}

func (m LogMailer) Send(_ context.Context, msg Message) error {
	if m.Logf != nil {
		m.Logf("dry run: notification not sent", "to", strings.Join(msg.To, ","), "subject", msg.Subject)
	}
	return nil
}
