package mail

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/mail"
	"net/smtp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/charlesng35/internai/pkg/logger"
)

var (
	// ErrSMTPDisabled signals that SMTP delivery is disabled via configuration.
	ErrSMTPDisabled = errors.New("smtp: delivery disabled")
	// ErrNoRecipients is returned when a message has no usable recipient.
	ErrNoRecipients = errors.New("smtp: at least one recipient is required")
)

// Message represents an outbound email.
type Message struct {
	From    string
	To      []string
	Subject string
	Body    string
	// Preview is a short excerpt safe to log when the message cannot be
	// sent. Messages carrying credentials that grant access leave it empty.
	Preview string
}

// Mailer defines behaviour for sending email messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPSettings capture the runtime configuration required by the SMTP mailer.
type SMTPSettings struct {
	Enabled  bool
	Host     string
	Port     int
	Username string
	Password string
	From     string
	UseTLS   bool
	Timeout  time.Duration
}

// New returns the SMTP mailer when enabled and a logging mailer otherwise.
func New(cfg SMTPSettings) (Mailer, error) {
	if !cfg.Enabled {
		return NewLogMailer(), nil
	}
	return NewSMTPMailer(cfg)
}

// NewSMTPMailer validates the settings and builds an SMTP backed mailer.
func NewSMTPMailer(cfg SMTPSettings) (Mailer, error) {
	if cfg.Enabled {
		if strings.TrimSpace(cfg.Host) == "" {
			return nil, errors.New("smtp: host is required when enabled")
		}
		if cfg.Port <= 0 {
			return nil, errors.New("smtp: port is required when enabled")
		}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &smtpMailer{cfg: cfg, dial: dialSMTP, auth: plainAuth}, nil
}

type smtpMailer struct {
	cfg  SMTPSettings
	dial func(ctx context.Context, cfg SMTPSettings) (net.Conn, smtpClient, error)
	auth func(client smtpClient, cfg SMTPSettings) error
}

type envelope struct {
	from       string
	recipients []string
}

func (m *smtpMailer) Send(ctx context.Context, msg Message) error {
	if !m.cfg.Enabled {
		return ErrSMTPDisabled
	}

	env, err := m.envelope(msg)
	if err != nil {
		return err
	}

	conn, client, err := m.dial(ctx, m.cfg)
	if err != nil {
		return err
	}
	defer conn.Close()
	defer client.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	} else {
		_ = conn.SetDeadline(time.Now().Add(m.cfg.Timeout))
	}

	if err := m.auth(client, m.cfg); err != nil {
		return err
	}
	if err := client.Mail(env.from); err != nil {
		return fmt.Errorf("smtp: mail from: %w", err)
	}
	for _, rcpt := range env.recipients {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("smtp: rcpt to %s: %w", rcpt, err)
		}
	}

	wc, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp: data command: %w", err)
	}
	if _, err := io.WriteString(wc, render(env, msg.Subject, msg.Body, time.Now())); err != nil {
		_ = wc.Close()
		return fmt.Errorf("smtp: write body: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("smtp: close data writer: %w", err)
	}
	return client.Quit()
}

func (m *smtpMailer) envelope(msg Message) (envelope, error) {
	recipients := uniqueAddresses(msg.To)
	if len(recipients) == 0 {
		return envelope{}, ErrNoRecipients
	}

	from := strings.TrimSpace(msg.From)
	if from == "" {
		from = m.cfg.From
	}
	if from == "" {
		return envelope{}, errors.New("smtp: sender address is required")
	}
	if _, err := mail.ParseAddress(from); err != nil {
		return envelope{}, fmt.Errorf("smtp: invalid from address: %w", err)
	}
	for _, rcpt := range recipients {
		if _, err := mail.ParseAddress(rcpt); err != nil {
			return envelope{}, fmt.Errorf("smtp: invalid recipient address %q: %w", rcpt, err)
		}
	}
	return envelope{from: from, recipients: recipients}, nil
}

type smtpClient interface {
	Mail(string) error
	Rcpt(string) error
	Data() (io.WriteCloser, error)
	Quit() error
	Close() error
	StartTLS(*tls.Config) error
	Auth(smtp.Auth) error
	Extension(string) (bool, string)
}

func dialSMTP(ctx context.Context, cfg SMTPSettings) (net.Conn, smtpClient, error) {
	address := net.JoinHostPort(cfg.Host, fmt.Sprint(cfg.Port))
	dialer := &net.Dialer{Timeout: cfg.Timeout}
	tlsConfig := &tls.Config{ServerName: cfg.Host, MinVersion: tls.VersionTLS12}

	var (
		conn net.Conn
		err  error
	)
	if cfg.UseTLS {
		conn, err = (&tls.Dialer{NetDialer: dialer, Config: tlsConfig}).DialContext(ctx, "tcp", address)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", address)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("smtp: dial %s: %w", address, err)
	}

	client, err := smtp.NewClient(conn, cfg.Host)
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("smtp: new client: %w", err)
	}

	if !cfg.UseTLS {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(tlsConfig); err != nil {
				_ = client.Close()
				_ = conn.Close()
				return nil, nil, fmt.Errorf("smtp: start tls: %w", err)
			}
		}
	}
	return conn, client, nil
}

func plainAuth(client smtpClient, cfg SMTPSettings) error {
	if strings.TrimSpace(cfg.Username) == "" {
		return nil
	}
	if err := client.Auth(smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)); err != nil {
		return fmt.Errorf("smtp: auth: %w", err)
	}
	return nil
}

func uniqueAddresses(addresses []string) []string {
	seen := make(map[string]struct{}, len(addresses))
	result := make([]string, 0, len(addresses))
	for _, addr := range addresses {
		addr = strings.TrimSpace(addr)
		if addr == "" {
			continue
		}
		key := strings.ToLower(addr)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		result = append(result, addr)
	}
	return result
}

func render(env envelope, subject, body string, now time.Time) string {
	domain := "localhost"
	if at := strings.LastIndex(env.from, "@"); at >= 0 {
		domain = strings.Trim(env.from[at+1:], "> ")
	}

	var b strings.Builder
	writeHeader(&b, "From", env.from)
	writeHeader(&b, "To", strings.Join(env.recipients, ", "))
	writeHeader(&b, "Subject", subject)
	writeHeader(&b, "Date", now.UTC().Format(time.RFC1123Z))
	writeHeader(&b, "Message-ID", fmt.Sprintf("<%s@%s>", uuid.NewString(), domain))
	writeHeader(&b, "MIME-Version", "1.0")
	writeHeader(&b, "Content-Type", "text/plain; charset=UTF-8")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(strings.ReplaceAll(body, "\r\n", "\n"), "\n", "\r\n"))
	return b.String()
}

func writeHeader(b *strings.Builder, name, value string) {
	value = strings.NewReplacer("\r", " ", "\n", " ").Replace(value)
	b.WriteString(name)
	b.WriteString(": ")
	b.WriteString(value)
	b.WriteString("\r\n")
}

// LogMailer stands in when SMTP is disabled. Nothing is sent: Send always
// fails with ErrSMTPDisabled and logs the message preview at debug level.
type LogMailer struct {
	log *zap.Logger
}

// NewLogMailer builds a LogMailer bound to the mail module logger.
func NewLogMailer() *LogMailer {
	return &LogMailer{log: logger.WithModule("mail")}
}

func (l *LogMailer) Send(_ context.Context, msg Message) error {
	if len(uniqueAddresses(msg.To)) == 0 {
		return ErrNoRecipients
	}
	fields := []zap.Field{zap.Strings("to", msg.To), zap.String("subject", msg.Subject)}
	if msg.Preview != "" {
		fields = append(fields, zap.String("preview", msg.Preview))
	}
	l.log.Debug("smtp disabled, message not sent", fields...)
	return ErrSMTPDisabled
}
