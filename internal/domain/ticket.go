package domain

import (
	"strings"
	"time"
)

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusTodo       TicketStatus = "TODO"
	TicketStatusInProgress TicketStatus = "IN_PROGRESS"
	TicketStatusCompleted  TicketStatus = "COMPLETED"
)

// Valid reports whether s is a known status.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusTodo, TicketStatusInProgress, TicketStatusCompleted:
		return true
	}
	return false
}

// TicketPriority enumerates triage urgency.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "low"
	TicketPriorityMedium TicketPriority = "medium"
	TicketPriorityHigh   TicketPriority = "high"
)

// NormalizePriority maps arbitrary classifier output onto the supported
// priorities. Anything unrecognised becomes medium.
func NormalizePriority(raw string) TicketPriority {
	switch p := TicketPriority(strings.ToLower(strings.TrimSpace(raw))); p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh:
		return p
	}
	return TicketPriorityMedium
}

// Ticket is the aggregate for support requests.
type Ticket struct {
	ID            string
	Title         string
	Description   string
	Status        TicketStatus
	Priority      *TicketPriority
	HelpfulNotes  *string
	RelatedSkills []string
	CreatedBy     string
	AssignedTo    *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// IsClassified reports whether the classification group has been written.
func (t *Ticket) IsClassified() bool {
	return t.Priority != nil
}

// Classification is the atomic group written after a classifier decision.
type Classification struct {
	Priority      TicketPriority
	HelpfulNotes  string
	RelatedSkills []string
}

// TicketUpdate is a partial update. Nil fields are left untouched.
type TicketUpdate struct {
	Status         *TicketStatus
	Classification *Classification
	// Assignment is applied when SetAssignment is true; a nil
	// AssignedTo clears the assignee.
	SetAssignment bool
	AssignedTo    *string
}

// Empty reports whether the update would change nothing.
func (u TicketUpdate) Empty() bool {
	return u.Status == nil && u.Classification == nil && !u.SetAssignment
}

// Apply writes the update onto t. Used by in-memory stores and tests.
func (u TicketUpdate) Apply(t *Ticket) {
	if u.Status != nil {
		t.Status = *u.Status
	}
	if u.Classification != nil {
		priority := u.Classification.Priority
		notes := u.Classification.HelpfulNotes
		t.Priority = &priority
		t.HelpfulNotes = &notes
		t.RelatedSkills = append([]string{}, u.Classification.RelatedSkills...)
	}
	if u.SetAssignment {
		if u.AssignedTo == nil {
			t.AssignedTo = nil
		} else {
			id := *u.AssignedTo
			t.AssignedTo = &id
		}
	}
}

// StatusPtr returns a pointer to s.
func StatusPtr(s TicketStatus) *TicketStatus {
	return &s
}
