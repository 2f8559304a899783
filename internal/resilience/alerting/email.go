package alerting

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/vietddude/vinspect/internal/core/domain"
)

// EmailChannel sends alerts over SMTP. net/smtp has no context support, so
// the dialer timeout is whatever the SMTP server negotiation allows; the
// dispatcher's per-delivery goroutine keeps a slow server from blocking
// other channels.
type EmailChannel struct {
	name string
	addr string
	from string
	to   []string
	auth smtp.Auth
}

// NewEmailChannel creates an SMTP channel. username may be empty for
// unauthenticated relays.
func NewEmailChannel(name, host string, port int, username, password, from string, to []string) *EmailChannel {
	var auth smtp.Auth
	if username != "" {
		auth = smtp.PlainAuth("", username, password, host)
	}
	return &EmailChannel{
		name: name,
		addr: fmt.Sprintf("%s:%d", host, port),
		from: from,
		to:   to,
		auth: auth,
	}
}

func (c *EmailChannel) Name() string      { return c.name }
func (c *EmailChannel) Kind() ChannelKind { return KindEmail }

// Send mails the alert to all configured recipients.
func (c *EmailChannel) Send(ctx context.Context, alert domain.Alert) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", c.from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(c.to, ", "))
	fmt.Fprintf(&b, "Subject: [%s] %s\r\n", strings.ToUpper(string(alert.Severity)), alert.Type)
	b.WriteString("\r\n")
	fmt.Fprintf(&b, "%s\r\n\r\n", alert.Message)
	if alert.Fingerprint != "" {
		fmt.Fprintf(&b, "Fingerprint: %s\r\n", alert.Fingerprint)
	}
	for k, v := range alert.Metadata {
		fmt.Fprintf(&b, "%s: %s\r\n", k, v)
	}

	if err := smtp.SendMail(c.addr, c.auth, c.from, c.to, []byte(b.String())); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}
