// Package mailer sends outbound account mail. The SMTP notifier fronts a
// real relay, the log notifier is the dev fallback that just prints.
package mailer

import (
	"context"
	"fmt"
	"strings"

	"github.com/wneessen/go-mail"

	"github.com/pazarly/accounts"
)

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Host) == "" {
		return fmt.Errorf("mailer: host is required")
	}
	if strings.TrimSpace(c.From) == "" {
		return fmt.Errorf("mailer: from address is required")
	}
	return nil
}

// SMTPNotifier delivers mail through an SMTP relay. It implements
// accounts.Notifier.
type SMTPNotifier struct {
	config Config
	logger accounts.Logger
}

var _ accounts.Notifier = (*SMTPNotifier)(nil)

func NewSMTP(cfg Config) (*SMTPNotifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &SMTPNotifier{config: cfg}, nil
}

func (s *SMTPNotifier) WithLogger(l accounts.Logger) *SMTPNotifier {
	s.logger = l
	return s
}

func (s *SMTPNotifier) Send(ctx context.Context, to, subject, body string) error {
	msg := mail.NewMsg()
	if err := msg.From(s.config.From); err != nil {
		return fmt.Errorf("mailer: invalid from address: %w", err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("mailer: invalid recipient: %w", err)
	}

	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)

	opts := []mail.Option{
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(s.config.Username),
		mail.WithPassword(s.config.Password),
	}
	if s.config.Port != 0 {
		opts = append(opts, mail.WithPort(s.config.Port))
	}

	client, err := mail.NewClient(s.config.Host, opts...)
	if err != nil {
		return fmt.Errorf("mailer: failed to create client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("mailer: failed to send: %w", err)
	}

	if s.logger != nil {
		s.logger.Debug("sent email", "to", to, "subject", subject)
	}

	return nil
}

// LogNotifier prints mail to stdout instead of sending it.
type LogNotifier struct{}

var _ accounts.Notifier = LogNotifier{}

func (LogNotifier) Send(_ context.Context, to, subject, body string) error {
	fmt.Println("====== SENDING EMAIL NOTIFICATION =======")
	fmt.Printf("to: %s\n", to)
	fmt.Printf("subject: %s\n", subject)
	fmt.Println(body)
	fmt.Println("=========================================")
	return nil
}
