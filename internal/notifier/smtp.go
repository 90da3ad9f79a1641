package notifier

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/mail"
	"net/smtp"
	"strconv"
	"time"
)

// SMTPOptions configures an SMTP relay.
type SMTPOptions struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTP delivers messages through an SMTP relay using STARTTLS when offered.
type SMTP struct {
	opts SMTPOptions
	tls  *tls.Config
	now  func() time.Time
}

// NewSMTP validates opts and returns a relay notifier.
func NewSMTP(opts SMTPOptions) (*SMTP, error) {
	if opts.Host == "" {
		return nil, fmt.Errorf("notifier: smtp host required")
	}
	if opts.Port == 0 {
		opts.Port = 587
	}
	if _, err := mail.ParseAddress(opts.From); err != nil {
		return nil, fmt.Errorf("notifier: invalid from address %q: %w", opts.From, err)
	}
	return &SMTP{
		opts: opts,
		tls:  &tls.Config{ServerName: opts.Host, MinVersion: tls.VersionTLS12},
		now:  time.Now,
	}, nil
}

// Send implements Notifier.
func (s *SMTP) Send(ctx context.Context, msg Message) error {
	if err := msg.validate(); err != nil {
		return err
	}
	from, _ := mail.ParseAddress(s.opts.From)
	to, err := mail.ParseAddress(msg.To)
	if err != nil {
		return fmt.Errorf("%w: recipient %q", ErrInvalidMessage, msg.To)
	}

	addr := net.JoinHostPort(s.opts.Host, strconv.Itoa(s.opts.Port))
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial smtp %s: %w", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, s.opts.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(s.tls.Clone()); err != nil {
			return fmt.Errorf("smtp starttls: %w", err)
		}
	}
	if s.opts.Username != "" {
		auth := smtp.PlainAuth("", s.opts.Username, s.opts.Password, s.opts.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}
	if err := client.Mail(from.Address); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	if err := client.Rcpt(to.Address); err != nil {
		return fmt.Errorf("smtp rcpt to: %w", err)
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write(s.compose(from, to, msg)); err != nil {
		w.Close()
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp data close: %w", err)
	}
	return client.Quit()
}

func (s *SMTP) compose(from, to *mail.Address, msg Message) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\r\n", from.String())
	fmt.Fprintf(&buf, "To: %s\r\n", to.String())
	fmt.Fprintf(&buf, "Subject: %s\r\n", msg.Subject)
	fmt.Fprintf(&buf, "Date: %s\r\n", s.now().Format(time.RFC1123Z))
	buf.WriteString("MIME-Version: 1.0\r\n")
	buf.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	buf.WriteString(msg.Body)
	return buf.Bytes()
}
