// Package notifier delivers plain-text emails to accounts.
package notifier

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
)

// ErrInvalidMessage is returned for messages without a recipient or subject.
var ErrInvalidMessage = errors.New("notifier: invalid message")

// Message is a single outgoing email.
type Message struct {
	To      string
	Subject string
	Body    string
}

func (m Message) validate() error {
	if strings.TrimSpace(m.To) == "" || strings.TrimSpace(m.Subject) == "" {
		return ErrInvalidMessage
	}
	if strings.ContainsAny(m.To, "\r\n") || strings.ContainsAny(m.Subject, "\r\n") {
		return ErrInvalidMessage
	}
	return nil
}

// Notifier sends messages. Delivery is best effort and at most once per call.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// Log writes messages to the logger instead of delivering them.
type Log struct {
	logger *zap.Logger
}

// NewLog returns a Notifier that only logs.
func NewLog(logger *zap.Logger) *Log {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Log{logger: logger}
}

// Send implements Notifier.
func (l *Log) Send(_ context.Context, msg Message) error {
	if err := msg.validate(); err != nil {
		return err
	}
	l.logger.Info("email",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.Int("body_bytes", len(msg.Body)),
	)
	return nil
}
