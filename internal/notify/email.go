package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
)

// EmailSender delivers notifications to a fixed recipient via SMTP. It is
// used to alert the operator inbox about access requests and faucet events.
type EmailSender struct {
	host     string
	port     int
	user     string
	password string
	from     string
	to       string
}

// NewEmailSender creates an EmailSender. When user is empty the connection is
// unauthenticated (local relay).
func NewEmailSender(host string, port int, user, password, from, to string) *EmailSender {
	return &EmailSender{
		host:     host,
		port:     port,
		user:     user,
		password: password,
		from:     from,
		to:       to,
	}
}

// Send delivers the notification as a plain-text email with the title as the
// subject. net/smtp has no context support, so the send runs in a goroutine
// and the call returns early on context cancellation; the dial timeout then
// bounds the orphaned attempt.
func (e *EmailSender) Send(ctx context.Context, title, message string) error {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", e.from)
	fmt.Fprintf(&b, "To: %s\r\n", e.to)
	fmt.Fprintf(&b, "Subject: %s\r\n", title)
	b.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	b.WriteString(message)
	b.WriteString("\r\n")

	var auth smtp.Auth
	if e.user != "" {
		auth = smtp.PlainAuth("", e.user, e.password, e.host)
	}
	addr := fmt.Sprintf("%s:%d", e.host, e.port)

	done := make(chan error, 1)
	go func() {
		done <- smtp.SendMail(addr, auth, e.from, []string{e.to}, []byte(b.String()))
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("email: send: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("email: send: %w", err)
		}
		return nil
	}
}

// Name returns the sender identifier.
func (e *EmailSender) Name() string {
	return "email"
}
