// Package notify sends task completion emails.
package notify

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"

	"github.com/digestai/digestai/log"
)

const (
	DefaultHost = "smtp.gmail.com"
	DefaultPort = 587

	Subject = "Task Completion Notification - DigestAI"
)

// ErrMissingCredentials is returned when the sender address or password is unset.
var ErrMissingCredentials = errors.New("email address and password are required")

// Notifier delivers a completion message for a finished task.
type Notifier interface {
	Notify(ctx context.Context, to, task, result, errText string) error
}

// Body renders the plain-text completion message.
func Body(task, result, errText string) string {
	var sb strings.Builder
	sb.WriteString("Your task has been completed!\n\n")
	fmt.Fprintf(&sb, "Task: %s\n\n", task)
	if result != "" {
		fmt.Fprintf(&sb, "Result: %s\n\n", result)
	}
	if errText != "" {
		fmt.Fprintf(&sb, "Error: %s\n\n", errText)
	}
	sb.WriteString("Thank you for using DigestAI!")
	return sb.String()
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPNotifier sends mail through an SMTP relay with PLAIN auth. The
// connection is upgraded with STARTTLS when the server offers it.
type SMTPNotifier struct {
	Host     string
	Port     int
	From     string
	Password string

	send sendFunc
}

var _ Notifier = (*SMTPNotifier)(nil)

// NewSMTPNotifier returns a notifier for the Gmail relay.
func NewSMTPNotifier(from, password string) *SMTPNotifier {
	return &SMTPNotifier{
		Host:     DefaultHost,
		Port:     DefaultPort,
		From:     from,
		Password: password,
		send:     smtp.SendMail,
	}
}

// Notify sends the completion message to one recipient.
func (n *SMTPNotifier) Notify(ctx context.Context, to, task, result, errText string) error {
	if n.From == "" || n.Password == "" {
		return ErrMissingCredentials
	}
	if to == "" {
		return errors.New("recipient is required")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	send := n.send
	if send == nil {
		send = smtp.SendMail
	}
	addr := net.JoinHostPort(n.Host, strconv.Itoa(n.Port))
	auth := smtp.PlainAuth("", n.From, n.Password, n.Host)

	if err := send(addr, auth, n.From, []string{to}, n.message(to, task, result, errText)); err != nil {
		return fmt.Errorf("send email to %s: %w", to, err)
	}
	log.Info("completion email sent to %s", to)
	return nil
}

func (n *SMTPNotifier) message(to, task, result, errText string) []byte {
	var sb strings.Builder
	fmt.Fprintf(&sb, "From: %s\r\n", n.From)
	fmt.Fprintf(&sb, "To: %s\r\n", to)
	fmt.Fprintf(&sb, "Subject: %s\r\n", Subject)
	sb.WriteString("MIME-Version: 1.0\r\n")
	sb.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	sb.WriteString("\r\n")
	sb.WriteString(strings.ReplaceAll(Body(task, result, errText), "\n", "\r\n"))
	return []byte(sb.String())
}

// NoopNotifier discards notifications.
type NoopNotifier struct{}

// Notify does nothing.
func (NoopNotifier) Notify(context.Context, string, string, string, string) error { return nil }
