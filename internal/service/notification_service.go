package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-intake/internal/domain"
	"github.com/spec-kit/ticket-intake/internal/notifier"
	"github.com/spec-kit/ticket-intake/internal/repository"
)

// ResolvedSubject is the subject of the mail sent when a ticket is completed.
const ResolvedSubject = "Ticket Resolved"

// NotificationService sends user-facing mails outside of workflows.
// Every send is best effort: failures are logged and never returned.
type NotificationService struct {
	notifier notifier.Notifier
	accounts repository.AccountRepository
	logger   *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(n notifier.Notifier, accounts repository.AccountRepository, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{notifier: n, accounts: accounts, logger: logger}
}

// TicketResolved tells the ticket's creator that resolver completed it.
func (n *NotificationService) TicketResolved(ctx context.Context, ticket *domain.Ticket, resolver *domain.Account) {
	if n == nil || n.notifier == nil {
		return
	}
	logger := n.logger.With(zap.String("ticket_id", ticket.ID))

	creator, err := n.accounts.GetByID(ctx, ticket.CreatedBy)
	if err != nil {
		logger.Warn("resolved mail: load creator", zap.Error(err))
		return
	}
	err = n.notifier.Send(ctx, notifier.Message{
		To:      creator.Email,
		Subject: ResolvedSubject,
		Body:    resolvedBody(creator, ticket, resolver),
	})
	if err != nil {
		logger.Warn("resolved mail: send", zap.Error(err))
	}
}

func resolvedBody(creator *domain.Account, ticket *domain.Ticket, resolver *domain.Account) string {
	by := "our support team"
	if resolver != nil && resolver.Name != "" {
		by = resolver.Name
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n", creator.Name)
	fmt.Fprintf(&b, "Your ticket %q has been resolved by %s.\n\n", ticket.Title, by)
	b.WriteString("Ticket details:\n")
	fmt.Fprintf(&b, "- Title: %s\n", ticket.Title)
	fmt.Fprintf(&b, "- Description: %s\n", ticket.Description)
	fmt.Fprintf(&b, "- Resolved on: %s\n", ticket.UpdatedAt.UTC().Format("2006-01-02 15:04 MST"))
	fmt.Fprintf(&b, "- Resolved by: %s\n\n", by)
	b.WriteString("Thank you for using our support system!\n")
	return b.String()
}
