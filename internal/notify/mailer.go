// Package notify delivers customer-facing notifications for order events.
package notify

import (
	"context"
	"fmt"

	"github.com/wneessen/go-mail"
)

// Message is one outbound plain-text email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Mailer delivers messages. Implementations must tolerate being handed the
// same message more than once.
type Mailer interface {
	Send(ctx context.Context, m Message) error
}

var _ Mailer = (*SMTPMailer)(nil)

// SMTPMailer sends mail through a plain SMTP relay.
type SMTPMailer struct {
	host     string
	port     int
	username string
	password string
	from     string
}

// NewSMTPMailer returns a mailer for the given relay. An empty username
// skips authentication, which suits local development relays.
func NewSMTPMailer(host string, port int, username, password, from string) *SMTPMailer {
	return &SMTPMailer{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
	}
}

// Send dials the relay and delivers one message.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	opts := []mail.Option{mail.WithPort(m.port)}
	if m.username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(m.username),
			mail.WithPassword(m.password),
		)
	}
	client, err := mail.NewClient(m.host, opts...)
	if err != nil {
		return fmt.Errorf("creating mail client: %w", err)
	}

	message := mail.NewMsg()
	if err := message.From(m.from); err != nil {
		return fmt.Errorf("setting mail sender: %w", err)
	}
	if err := message.To(msg.To); err != nil {
		return fmt.Errorf("setting mail recipient: %w", err)
	}
	message.Subject(msg.Subject)
	message.SetBodyString(mail.TypeTextPlain, msg.Body)

	if err := client.DialAndSendWithContext(ctx, message); err != nil {
		return fmt.Errorf("sending mail: %w", err)
	}
	return nil
}
