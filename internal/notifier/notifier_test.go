package notifier

import (
	"bufio"
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"net/mail"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogSend(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	n := NewLog(zap.New(core))

	err := n.Send(context.Background(), Message{To: "mod@example.com", Subject: "Ticket Assigned", Body: "hello"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	entries := logs.FilterMessage("email").All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(entries))
	}
	if got := entries[0].ContextMap()["to"]; got != "mod@example.com" {
		t.Errorf("expected to=mod@example.com, got %v", got)
	}
}

func TestMessageValidation(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
	}{
		{"missing recipient", Message{Subject: "s"}},
		{"missing subject", Message{To: "a@example.com"}},
		{"header injection", Message{To: "a@example.com", Subject: "s\r\nBcc: x@example.com"}},
	}
	n := NewLog(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := n.Send(context.Background(), tt.msg); !errors.Is(err, ErrInvalidMessage) {
				t.Errorf("expected ErrInvalidMessage, got %v", err)
			}
		})
	}
}

func TestNewSMTP(t *testing.T) {
	if _, err := NewSMTP(SMTPOptions{From: "a@example.com"}); err == nil {
		t.Error("expected error for missing host")
	}
	if _, err := NewSMTP(SMTPOptions{Host: "smtp.example.com", From: "not an address"}); err == nil {
		t.Error("expected error for invalid from")
	}
	s, err := NewSMTP(SMTPOptions{Host: "smtp.example.com", From: "Desk <desk@example.com>"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if s.opts.Port != 587 {
		t.Errorf("expected default port 587, got %d", s.opts.Port)
	}
}

func TestSMTPCompose(t *testing.T) {
	s, err := NewSMTP(SMTPOptions{Host: "smtp.example.com", From: "Desk <desk@example.com>"})
	if err != nil {
		t.Fatalf("NewSMTP: %v", err)
	}
	s.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }

	from, _ := mail.ParseAddress("Desk <desk@example.com>")
	to, _ := mail.ParseAddress("mod@example.com")
	raw := string(s.compose(from, to, Message{To: "mod@example.com", Subject: "Ticket Assigned", Body: "body text"}))

	for _, want := range []string{
		"From: \"Desk\" <desk@example.com>\r\n",
		"To: <mod@example.com>\r\n",
		"Subject: Ticket Assigned\r\n",
		"Date: Wed, 01 May 2024 12:00:00 +0000\r\n",
		"\r\n\r\nbody text",
	} {
		if !strings.Contains(raw, want) {
			t.Errorf("expected message to contain %q, got:\n%s", want, raw)
		}
	}
}

func TestSMTPSendDialFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().(*net.TCPAddr)
	ln.Close()

	s, err := NewSMTP(SMTPOptions{Host: "127.0.0.1", Port: addr.Port, From: "desk@example.com"})
	if err != nil {
		t.Fatalf("NewSMTP: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Send(ctx, Message{To: "mod@example.com", Subject: "s", Body: "b"}); err == nil {
		t.Fatal("expected dial error")
	}
}

// fakeRelay is a minimal SMTP server that offers STARTTLS and AUTH PLAIN.
type fakeRelay struct {
	addr     *net.TCPAddr
	roots    *x509.CertPool
	commands chan []string
	data     chan string
}

func newFakeRelay(t *testing.T) *fakeRelay {
	t.Helper()
	certSrv := httptest.NewTLSServer(http.NotFoundHandler())
	t.Cleanup(certSrv.Close)
	roots := x509.NewCertPool()
	roots.AddCert(certSrv.Certificate())
	serverTLS := &tls.Config{Certificates: certSrv.TLS.Certificates}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	r := &fakeRelay{
		addr:     ln.Addr().(*net.TCPAddr),
		roots:    roots,
		commands: make(chan []string, 1),
		data:     make(chan string, 1),
	}
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		r.serve(conn, serverTLS)
	}()
	return r
}

func (r *fakeRelay) serve(conn net.Conn, serverTLS *tls.Config) {
	var commands []string
	defer func() { r.commands <- commands }()

	reader := bufio.NewReader(conn)
	write := func(line string) { fmt.Fprintf(conn, "%s\r\n", line) }
	secure := false

	write("220 relay.test ESMTP")
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimRight(line, "\r\n")
		verb := strings.ToUpper(strings.SplitN(line, " ", 2)[0])
		commands = append(commands, verb)

		switch verb {
		case "EHLO":
			if secure {
				write("250-relay.test")
				write("250 AUTH PLAIN")
			} else {
				write("250-relay.test")
				write("250-STARTTLS")
				write("250 AUTH PLAIN")
			}
		case "STARTTLS":
			write("220 ready to start TLS")
			tlsConn := tls.Server(conn, serverTLS)
			if err := tlsConn.Handshake(); err != nil {
				commands = append(commands, "TLS-FAILED")
				return
			}
			conn = tlsConn
			reader = bufio.NewReader(conn)
			secure = true
		case "AUTH":
			write("235 authenticated")
		case "MAIL", "RCPT":
			write("250 ok")
		case "DATA":
			write("354 go ahead")
			var body strings.Builder
			for {
				l, err := reader.ReadString('\n')
				if err != nil {
					return
				}
				if l == ".\r\n" {
					break
				}
				body.WriteString(l)
			}
			r.data <- body.String()
			write("250 queued")
		case "QUIT":
			write("221 bye")
			return
		default:
			write("502 not implemented")
		}
	}
}

func TestSMTPSendOverStartTLS(t *testing.T) {
	relay := newFakeRelay(t)

	n, err := NewSMTP(SMTPOptions{
		Host:     "127.0.0.1",
		Port:     relay.addr.Port,
		Username: "mailer",
		Password: "secret",
		From:     "Helpdesk <help@example.com>",
	})
	if err != nil {
		t.Fatalf("NewSMTP: %v", err)
	}
	n.tls.RootCAs = relay.roots

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err = n.Send(ctx, Message{To: "mod@example.com", Subject: "Ticket Assigned", Body: "Login broken"})
	if err != nil {
		t.Fatalf("expected send over STARTTLS to succeed, got %v", err)
	}

	body := <-relay.data
	if !strings.Contains(body, "Subject: Ticket Assigned") || !strings.Contains(body, "Login broken") {
		t.Errorf("unexpected message body %q", body)
	}
	commands := strings.Join(<-relay.commands, " ")
	if commands != "EHLO STARTTLS EHLO AUTH MAIL RCPT DATA QUIT" {
		t.Errorf("unexpected command sequence %q", commands)
	}
}
