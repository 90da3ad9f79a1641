package dto

import (
	"time"

	"github.com/spec-kit/ticket-intake/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// UpdateTicketStatusRequest payload.
type UpdateTicketStatusRequest struct {
	Status domain.TicketStatus `json:"status"`
}

// TicketResponse represents a ticket. Triage fields are only filled in for
// staff.
type TicketResponse struct {
	ID            string                 `json:"id"`
	Title         string                 `json:"title"`
	Description   string                 `json:"description"`
	Status        domain.TicketStatus    `json:"status"`
	Priority      *domain.TicketPriority `json:"priority,omitempty"`
	HelpfulNotes  *string                `json:"helpful_notes,omitempty"`
	RelatedSkills []string               `json:"related_skills,omitempty"`
	CreatedBy     string                 `json:"created_by"`
	AssignedTo    *string                `json:"assigned_to,omitempty"`
	CreatedAt     time.Time              `json:"created_at"`
	UpdatedAt     time.Time              `json:"updated_at"`
}

// StepResponse is one step of a workflow run.
type StepResponse struct {
	Name     string             `json:"name"`
	Attempts int                `json:"attempts"`
	Outcome  domain.StepOutcome `json:"outcome"`
	Error    string             `json:"error,omitempty"`
}

// RunResponse represents a workflow run record.
type RunResponse struct {
	ID         string           `json:"id"`
	Workflow   string           `json:"workflow"`
	EventID    string           `json:"event_id"`
	Status     domain.RunStatus `json:"status"`
	FailedStep string           `json:"failed_step,omitempty"`
	Error      string           `json:"error,omitempty"`
	Steps      []StepResponse   `json:"steps"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
}
