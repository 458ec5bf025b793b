package alerting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/wneessen/go-mail"
)

// EmailOptions parameterise the SMTP notifier. Port 465 implies implicit TLS
// submission, matching the expected transport.
type EmailOptions struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Timeout  time.Duration
}

// EmailNotifier delivers notifications over SMTP.
type EmailNotifier struct {
	opts   EmailOptions
	client *mail.Client
	logger zerolog.Logger
}

// NewEmailNotifier constructs an SMTP notifier.
func NewEmailNotifier(opts EmailOptions, logger zerolog.Logger) (*EmailNotifier, error) {
	if opts.Host == "" {
		return nil, errors.New("smtp host required")
	}
	if opts.From == "" {
		return nil, errors.New("sender address required")
	}
	if opts.Port <= 0 {
		opts.Port = 465
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}

	clientOpts := []mail.Option{
		mail.WithPort(opts.Port),
		mail.WithSSL(),
		mail.WithTimeout(opts.Timeout),
	}
	if opts.Username != "" {
		clientOpts = append(clientOpts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(opts.Username),
			mail.WithPassword(opts.Password),
		)
	}

	client, err := mail.NewClient(opts.Host, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create smtp client: %w", err)
	}

	return &EmailNotifier{
		opts:   opts,
		client: client,
		logger: logger.With().Str("component", "alert_email").Logger(),
	}, nil
}

// Notify dispatches one email. At most one attempt is made per call.
func (n *EmailNotifier) Notify(ctx context.Context, note Notification) error {
	if note.To == "" {
		return errors.New("recipient address required")
	}

	msg := mail.NewMsg()
	if err := msg.From(n.opts.From); err != nil {
		return fmt.Errorf("set sender: %w", err)
	}
	if err := msg.To(note.To); err != nil {
		return fmt.Errorf("set recipient: %w", err)
	}
	msg.Subject(note.Subject)
	msg.SetBodyString(mail.TypeTextPlain, note.Body)

	if err := n.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send email: %w", err)
	}

	n.logger.Info().Str("to", note.To).Str("subject", note.Subject).Msg("alert email sent")
	return nil
}

var _ Notifier = (*EmailNotifier)(nil)
