package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-intake/internal/domain"
	"github.com/spec-kit/ticket-intake/internal/events"
	"github.com/spec-kit/ticket-intake/internal/repository"
	apperrors "github.com/spec-kit/ticket-intake/pkg/util/errorutil"
)

// TicketService coordinates ticket reads and human-driven changes. The
// automated triage of new tickets happens in the intake workflow.
type TicketService struct {
	tickets       repository.TicketRepository
	runs          repository.RunRepository
	publisher     events.Publisher
	notifications *NotificationService
	logger        *zap.Logger
}

// TicketDependencies bundles repositories for ticket service.
type TicketDependencies struct {
	TicketRepo    repository.TicketRepository
	RunRepo       repository.RunRepository
	Publisher     events.Publisher
	Notifications *NotificationService
	Logger        *zap.Logger
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Title       string
	Description string
}

// Page bounds a listing.
type Page struct {
	Limit  int
	Offset int
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TicketService{
		tickets:       deps.TicketRepo,
		runs:          deps.RunRepo,
		publisher:     deps.Publisher,
		notifications: deps.Notifications,
		logger:        logger,
	}
}

// CreateTicket stores a TODO ticket for caller and emits ticket/created.
// The ticket is returned even if the event could not be published; the
// intake can then be started by hand.
func (s *TicketService) CreateTicket(ctx context.Context, caller *domain.Account, input TicketCreateInput) (*domain.Ticket, error) {
	title := strings.TrimSpace(input.Title)
	description := strings.TrimSpace(input.Description)
	details := map[string]any{}
	if title == "" {
		details["title"] = "required"
	}
	if description == "" {
		details["description"] = "required"
	}
	if len(details) > 0 {
		return nil, apperrors.NewValidationError("title and description are required", details)
	}

	ticket := &domain.Ticket{
		Title:       title,
		Description: description,
		Status:      domain.TicketStatusTodo,
		CreatedBy:   caller.ID,
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.publishCreated(ctx, ticket)
	return ticket, nil
}

func (s *TicketService) publishCreated(ctx context.Context, ticket *domain.Ticket) {
	if s.publisher == nil {
		return
	}
	event, err := events.NewEvent(events.EventTicketCreated, events.TicketCreatedPayload{TicketID: ticket.ID})
	if err == nil {
		err = s.publisher.Publish(ctx, event)
	}
	if err != nil {
		s.logger.Error("publish ticket/created", zap.String("ticket_id", ticket.ID), zap.Error(err))
	}
}

// ListTickets returns every ticket to staff and the caller's own tickets
// to everyone else, newest first.
func (s *TicketService) ListTickets(ctx context.Context, caller *domain.Account, page Page) ([]domain.Ticket, error) {
	filter := repository.TicketFilter{Limit: page.Limit, Offset: page.Offset}
	if !caller.Role.IsStaff() {
		filter.CreatedBy = &caller.ID
	}
	tickets, err := s.tickets.List(ctx, filter)
	return tickets, apperrors.MapError(err)
}

// ListOwnTickets returns tickets the caller filed.
func (s *TicketService) ListOwnTickets(ctx context.Context, caller *domain.Account, page Page) ([]domain.Ticket, error) {
	tickets, err := s.tickets.List(ctx, repository.TicketFilter{
		CreatedBy: &caller.ID,
		Limit:     page.Limit,
		Offset:    page.Offset,
	})
	return tickets, apperrors.MapError(err)
}

// ListAssignedTickets returns tickets assigned to a staff caller.
func (s *TicketService) ListAssignedTickets(ctx context.Context, caller *domain.Account, page Page) ([]domain.Ticket, error) {
	if !caller.Role.IsStaff() {
		return nil, apperrors.NewForbidden("only moderators have assigned tickets")
	}
	tickets, err := s.tickets.List(ctx, repository.TicketFilter{
		AssignedTo: &caller.ID,
		Limit:      page.Limit,
		Offset:     page.Offset,
	})
	return tickets, apperrors.MapError(err)
}

// GetTicket returns a ticket the caller may see. Tickets the caller may not
// see are reported as missing.
func (s *TicketService) GetTicket(ctx context.Context, caller *domain.Account, id string) (*domain.Ticket, error) {
	ticket, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canView(caller, ticket) {
		return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": id})
	}
	return ticket, nil
}

// UpdateStatus lets an admin, or the moderator the ticket is assigned to,
// set its status. Completing a ticket mails its creator.
func (s *TicketService) UpdateStatus(ctx context.Context, caller *domain.Account, id string, status domain.TicketStatus) (*domain.Ticket, error) {
	if !status.Valid() {
		return nil, apperrors.NewValidationError("invalid status", map[string]any{"status": status})
	}
	ticket, err := s.GetTicket(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	if !canChangeStatus(caller, ticket) {
		return nil, apperrors.NewForbidden("only an admin or the assigned moderator can change status")
	}

	updated, err := s.tickets.Update(ctx, id, domain.TicketUpdate{Status: &status})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if status == domain.TicketStatusCompleted && ticket.Status != domain.TicketStatusCompleted {
		s.notifications.TicketResolved(ctx, updated, caller)
	}
	return updated, nil
}

// ListRuns returns the workflow runs recorded for a ticket.
func (s *TicketService) ListRuns(ctx context.Context, id string) ([]domain.WorkflowRun, error) {
	if _, err := s.load(ctx, id); err != nil {
		return nil, err
	}
	runs, err := s.runs.ListBySubject(ctx, id)
	return runs, apperrors.MapError(err)
}

func (s *TicketService) load(ctx context.Context, id string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": id})
		}
		return nil, apperrors.MapError(err)
	}
	return ticket, nil
}

func canView(caller *domain.Account, ticket *domain.Ticket) bool {
	if caller.Role == domain.AccountRoleAdmin || ticket.CreatedBy == caller.ID {
		return true
	}
	return isAssignee(caller, ticket)
}

func canChangeStatus(caller *domain.Account, ticket *domain.Ticket) bool {
	if caller.Role == domain.AccountRoleAdmin {
		return true
	}
	return caller.Role == domain.AccountRoleModerator && isAssignee(caller, ticket)
}

func isAssignee(caller *domain.Account, ticket *domain.Ticket) bool {
	return ticket.AssignedTo != nil && *ticket.AssignedTo == caller.ID
}
