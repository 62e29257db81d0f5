// Package mail delivers outbound notifications over SMTP.
package mail

import (
	"context"
	"fmt"
	"net"
	"strconv"

	gomail "github.com/wneessen/go-mail"

	"github.com/dmitrijs2005/timecapsule/internal/common"
	"github.com/dmitrijs2005/timecapsule/internal/server/config"
)

// Dispatcher is the send-one-message collaborator. Sends may fail; callers
// decide whether a failure is fatal.
type Dispatcher interface {
	Send(ctx context.Context, to string, subject string, body string) error
}

// SMTPDispatcher implements Dispatcher over a plain SMTP relay.
type SMTPDispatcher struct {
	host string
	port int
	user string
	pass string
	from string
}

// NewSMTPDispatcher parses the configured host:port address. Credentials are
// optional; a local relay like MailHog needs none.
func NewSMTPDispatcher(cfg *config.Config) (*SMTPDispatcher, error) {
	host, portStr, err := net.SplitHostPort(cfg.SMTPAddr)
	if err != nil {
		return nil, fmt.Errorf("invalid smtp address %q: %w", cfg.SMTPAddr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid smtp port %q: %w", portStr, err)
	}
	return &SMTPDispatcher{
		host: host,
		port: port,
		user: cfg.SMTPUser,
		pass: cfg.SMTPPassword,
		from: cfg.SMTPFrom,
	}, nil
}

// Send composes and delivers one plain-text message. Any failure is wrapped
// in common.ErrDelivery so callers can classify it with errors.Is.
func (d *SMTPDispatcher) Send(ctx context.Context, to string, subject string, body string) error {
	msg := gomail.NewMsg()
	if err := msg.From(d.from); err != nil {
		return fmt.Errorf("%w: %v", common.ErrDelivery, err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("%w: %v", common.ErrDelivery, err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextPlain, body)

	opts := []gomail.Option{
		gomail.WithPort(d.port),
		gomail.WithTLSPolicy(gomail.TLSOpportunistic),
	}
	if d.user != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(d.user),
			gomail.WithPassword(d.pass),
		)
	}

	client, err := gomail.NewClient(d.host, opts...)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrDelivery, err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("%w: %v", common.ErrDelivery, err)
	}
	return nil
}
