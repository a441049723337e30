package notify

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"

	"github.com/timmy/jobalerts/internal/domain"
	"github.com/timmy/jobalerts/internal/logger"
	"github.com/wneessen/go-mail"
)

// Sender delivers one plain-text email.
type Sender interface {
	// Send delivers body to a single recipient.
	// Parameters:
	//   - ctx: context for cancellation and deadlines.
	//   - to: recipient address.
	//   - subject: subject line.
	//   - body: plain-text body.
	// Returns:
	//   - error: *domain.DeliveryError on any transport failure.
	Send(ctx context.Context, to, subject, body string) error
}

// SMTPConfig holds relay settings for SMTPSender.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	// FromName is the display name on the From header, e.g. "Amazon Job Alerts".
	FromName string
}

// SMTPSender sends mail through an authenticated STARTTLS relay.
// Each Send dials its own connection and closes it when ctx ends, so a
// timed-out send cannot complete after it was reported as failed.
type SMTPSender struct {
	cfg    SMTPConfig
	from   string
	policy mail.TLSPolicy
	dial   mail.DialContextFunc
}

// NewSMTPSender creates an SMTPSender.
// Gmail relays reject foreign From headers, so the login user is used there.
func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	from := cfg.From
	if strings.Contains(strings.ToLower(cfg.Host), "gmail") && cfg.Username != "" {
		from = cfg.Username
	}
	if from == "" {
		from = cfg.Username
	}
	d := &net.Dialer{}
	return &SMTPSender{cfg: cfg, from: from, policy: mail.TLSMandatory, dial: d.DialContext}
}

// Send implements Sender.
func (s *SMTPSender) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return &domain.DeliveryError{Recipient: to, Err: err}
	}

	msg, err := s.message(to, subject, body)
	if err != nil {
		return &domain.DeliveryError{Recipient: to, Err: err}
	}
	client, err := s.client(ctx)
	if err != nil {
		return &domain.DeliveryError{Recipient: to, Err: err}
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = errors.Join(ctxErr, err)
		}
		return &domain.DeliveryError{Recipient: to, Err: err}
	}
	logger.CtxInfo(ctx, "Email sent: to=%s", to)
	return nil
}

func (s *SMTPSender) message(to, subject, body string) (*mail.Msg, error) {
	m := mail.NewMsg(mail.WithNoDefaultUserAgent())
	if s.cfg.FromName != "" {
		if err := m.FromFormat(s.cfg.FromName, s.from); err != nil {
			return nil, fmt.Errorf("from address: %w", err)
		}
	} else if err := m.From(s.from); err != nil {
		return nil, fmt.Errorf("from address: %w", err)
	}
	if err := m.To(to); err != nil {
		return nil, fmt.Errorf("recipient address: %w", err)
	}
	m.Subject(subject)
	m.SetDate()
	m.SetMessageID()
	m.SetBodyString(mail.TypeTextPlain, body)
	return m, nil
}

// client builds a go-mail client whose connections are torn down when ctx ends.
func (s *SMTPSender) client(ctx context.Context) (*mail.Client, error) {
	opts := []mail.Option{
		mail.WithPort(s.cfg.Port),
		mail.WithTLSPortPolicy(s.policy),
		mail.WithDialContextFunc(s.dialUntilDone(ctx)),
	}
	if s.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.cfg.Username),
			mail.WithPassword(s.cfg.Password),
		)
	}
	c, err := mail.NewClient(s.cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}
	return c, nil
}

// dialUntilDone dials with s.dial and closes the connection once ctx is done.
// The dial context go-mail passes in ends with the dial, so ctx is captured here.
func (s *SMTPSender) dialUntilDone(ctx context.Context) mail.DialContextFunc {
	return func(dialCtx context.Context, network, addr string) (net.Conn, error) {
		conn, err := s.dial(dialCtx, network, addr)
		if err != nil {
			return nil, err
		}
		stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
		return &boundConn{Conn: conn, stop: stop}, nil
	}
}

type boundConn struct {
	net.Conn
	stop func() bool
}

func (c *boundConn) Close() error {
	c.stop()
	return c.Conn.Close()
}

// Message is an email captured by LogSender.
type Message struct {
	To      string
	Subject string
	Body    string
}

// LogSender logs emails instead of sending them. Used in test mode and dry runs.
type LogSender struct {
	mu   sync.Mutex
	sent []Message
}

// NewLogSender creates a LogSender.
func NewLogSender() *LogSender {
	return &LogSender{}
}

// Send implements Sender.
func (s *LogSender) Send(ctx context.Context, to, subject, body string) error {
	s.mu.Lock()
	s.sent = append(s.sent, Message{To: to, Subject: subject, Body: body})
	s.mu.Unlock()

	logger.FromContext(ctx).WithFields(logger.Fields{
		logger.FieldRecipient: to,
		"subject":             subject,
	}).Infof("Dry-run email:\n%s", body)
	return nil
}

// Sent returns a copy of every captured message.
func (s *LogSender) Sent() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.sent))
	copy(out, s.sent)
	return out
}

// String describes the relay for startup logs.
func (s *SMTPSender) String() string {
	return fmt.Sprintf("smtp://%s:%d (from %s)", s.cfg.Host, s.cfg.Port, s.from)
}
