// Package mailer delivers newly issued API keys by email.
package mailer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"text/template"

	"github.com/wneessen/go-mail"
)

// ErrDisabled is returned by senders when no SMTP relay is configured.
var ErrDisabled = errors.New("mail delivery disabled")

// ErrInvalidMessage marks a message that can never be sent as built, such
// as one with a malformed address. Retrying it is pointless.
var ErrInvalidMessage = errors.New("invalid message")

// Sender delivers an API key to its owner.
type Sender interface {
	SendAPIKey(ctx context.Context, to, name, apiKey string) error
}

// Config describes the SMTP relay.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTP sends mail through an SMTP relay.
type SMTP struct {
	cfg  Config
	opts []mail.Option
}

// NewSMTP validates cfg and returns an SMTP sender. The connection is opened
// per message.
func NewSMTP(cfg Config) (*SMTP, error) {
	if cfg.Host == "" {
		return nil, errors.New("mailer: host is required")
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}

	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTLSPortPolicy(mail.TLSOpportunistic),
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}

	return &SMTP{cfg: cfg, opts: opts}, nil
}

// SendAPIKey emails apiKey to the given recipient.
func (s *SMTP) SendAPIKey(ctx context.Context, to, name, apiKey string) error {
	msg, err := buildKeyMessage(s.cfg.From, to, name, apiKey)
	if err != nil {
		return err
	}

	client, err := mail.NewClient(s.cfg.Host, s.opts...)
	if err != nil {
		return fmt.Errorf("create smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send api key email: %w", err)
	}
	return nil
}

var keyBody = template.Must(template.New("key").Parse(`Hello {{.Name}},

An API key has been issued for your account:

    {{.Key}}

Send it in the X-API-Key header with every request. Keep it secret; it
cannot be shown again.
`))

func buildKeyMessage(from, to, name, apiKey string) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(from); err != nil {
		return nil, fmt.Errorf("%w: sender address: %w", ErrInvalidMessage, err)
	}
	if err := msg.To(to); err != nil {
		return nil, fmt.Errorf("%w: recipient address: %w", ErrInvalidMessage, err)
	}
	msg.Subject("Your API key")

	var body bytes.Buffer
	if err := keyBody.Execute(&body, struct{ Name, Key string }{name, apiKey}); err != nil {
		return nil, fmt.Errorf("%w: render body: %w", ErrInvalidMessage, err)
	}
	msg.SetBodyString(mail.TypeTextPlain, body.String())

	return msg, nil
}

// Disabled is a Sender used when SMTP is not configured.
type Disabled struct{}

// SendAPIKey always returns ErrDisabled.
func (Disabled) SendAPIKey(context.Context, string, string, string) error {
	return ErrDisabled
}
