package handlers

import (
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-intake/internal/api/dto"
	"github.com/spec-kit/ticket-intake/internal/auth"
	"github.com/spec-kit/ticket-intake/internal/domain"
	"github.com/spec-kit/ticket-intake/internal/service"
	apperrors "github.com/spec-kit/ticket-intake/pkg/util/errorutil"
)

// TicketsHandler manages ticket endpoints.
type TicketsHandler struct {
	service *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.service.CreateTicket(c.UserContext(), principal.Account, service.TicketCreateInput{
		Title:       req.Title,
		Description: req.Description,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": ticketResponse(ticket, principal.Account)})
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	tickets, err := h.service.ListTickets(c.UserContext(), principal.Account, parsePage(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponses(tickets, principal.Account)})
}

// ListOwnTickets GET /tickets/mine.
func (h *TicketsHandler) ListOwnTickets(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	tickets, err := h.service.ListOwnTickets(c.UserContext(), principal.Account, parsePage(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponses(tickets, principal.Account)})
}

// ListAssignedTickets GET /tickets/assigned.
func (h *TicketsHandler) ListAssignedTickets(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	tickets, err := h.service.ListAssignedTickets(c.UserContext(), principal.Account, parsePage(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponses(tickets, principal.Account)})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	ticket, err := h.service.GetTicket(c.UserContext(), principal.Account, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket, principal.Account)})
}

// UpdateStatus PATCH /tickets/:id/status.
func (h *TicketsHandler) UpdateStatus(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	var req dto.UpdateTicketStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.service.UpdateStatus(c.UserContext(), principal.Account, c.Params("id"), req.Status)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket, principal.Account)})
}

// ListRuns GET /tickets/:id/runs.
func (h *TicketsHandler) ListRuns(c *fiber.Ctx) error {
	runs, err := h.service.ListRuns(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	items := make([]dto.RunResponse, 0, len(runs))
	for i := range runs {
		items = append(items, runResponse(&runs[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

func requirePrincipal(c *fiber.Ctx) (*auth.Principal, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	return principal, nil
}

func parsePage(c *fiber.Ctx) service.Page {
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 20)
	if pageSize > 100 {
		pageSize = 100
	}
	return service.Page{Limit: pageSize, Offset: (page - 1) * pageSize}
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func ticketResponse(ticket *domain.Ticket, viewer *domain.Account) dto.TicketResponse {
	resp := dto.TicketResponse{
		ID:          ticket.ID,
		Title:       ticket.Title,
		Description: ticket.Description,
		Status:      ticket.Status,
		CreatedBy:   ticket.CreatedBy,
		CreatedAt:   ticket.CreatedAt,
		UpdatedAt:   ticket.UpdatedAt,
	}
	if viewer.Role.IsStaff() {
		resp.Priority = ticket.Priority
		resp.HelpfulNotes = ticket.HelpfulNotes
		resp.RelatedSkills = ticket.RelatedSkills
		resp.AssignedTo = ticket.AssignedTo
	}
	return resp
}

func ticketResponses(tickets []domain.Ticket, viewer *domain.Account) []dto.TicketResponse {
	items := make([]dto.TicketResponse, 0, len(tickets))
	for i := range tickets {
		items = append(items, ticketResponse(&tickets[i], viewer))
	}
	return items
}

func runResponse(run *domain.WorkflowRun) dto.RunResponse {
	steps := make([]dto.StepResponse, 0, len(run.Steps))
	for _, step := range run.Steps {
		steps = append(steps, dto.StepResponse{
			Name:     step.Name,
			Attempts: step.Attempts,
			Outcome:  step.Outcome,
			Error:    step.Error,
		})
	}
	return dto.RunResponse{
		ID:         run.ID,
		Workflow:   run.Workflow,
		EventID:    run.EventID,
		Status:     run.Status,
		FailedStep: run.FailedStep,
		Error:      run.Error,
		Steps:      steps,
		StartedAt:  run.StartedAt,
		FinishedAt: run.FinishedAt,
	}
}
