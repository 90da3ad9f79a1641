package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/spec-kit/ticket-intake/internal/domain"
)

func TestMemoryTickets_UpdateIsPartial(t *testing.T) {
	store := NewMemoryStore()
	tickets := store.Tickets()
	ctx := context.Background()

	ticket := &domain.Ticket{Title: "Login broken", Description: "cannot sign in", CreatedBy: "acc-1"}
	if err := tickets.Create(ctx, ticket); err != nil {
		t.Fatalf("create: %v", err)
	}
	if ticket.Status != domain.TicketStatusTodo {
		t.Errorf("expected default status TODO, got %q", ticket.Status)
	}

	updated, err := tickets.Update(ctx, ticket.ID, domain.TicketUpdate{
		Classification: &domain.Classification{
			Priority:      domain.TicketPriorityHigh,
			HelpfulNotes:  "check the session store",
			RelatedSkills: []string{"auth"},
		},
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Status != domain.TicketStatusTodo {
		t.Errorf("expected status untouched, got %q", updated.Status)
	}
	if updated.Priority == nil || *updated.Priority != domain.TicketPriorityHigh {
		t.Errorf("expected priority high, got %v", updated.Priority)
	}

	assignee := "mod-1"
	updated, err = tickets.Update(ctx, ticket.ID, domain.TicketUpdate{SetAssignment: true, AssignedTo: &assignee})
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if updated.AssignedTo == nil || *updated.AssignedTo != "mod-1" {
		t.Errorf("expected assignee mod-1, got %v", updated.AssignedTo)
	}
	if len(updated.RelatedSkills) != 1 {
		t.Errorf("expected skills untouched, got %v", updated.RelatedSkills)
	}

	updated, err = tickets.Update(ctx, ticket.ID, domain.TicketUpdate{SetAssignment: true})
	if err != nil {
		t.Fatalf("clear: %v", err)
	}
	if updated.AssignedTo != nil {
		t.Errorf("expected assignee cleared, got %v", *updated.AssignedTo)
	}
}

func TestMemoryTickets_ReturnedValuesAreCopies(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	ticket := &domain.Ticket{Title: "a", Description: "b"}
	_ = store.Tickets().Create(ctx, ticket)

	got, _ := store.Tickets().GetByID(ctx, ticket.ID)
	got.Status = domain.TicketStatusCompleted

	again, _ := store.Tickets().GetByID(ctx, ticket.ID)
	if again.Status != domain.TicketStatusTodo {
		t.Errorf("mutation leaked into store: %q", again.Status)
	}
}

func TestMemoryTickets_NotFound(t *testing.T) {
	store := NewMemoryStore()
	_, err := store.Tickets().GetByID(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	_, err = store.Tickets().Update(context.Background(), "missing", domain.TicketUpdate{Status: domain.StatusPtr(domain.TicketStatusTodo)})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on update, got %v", err)
	}
}

func TestMemoryTickets_ListFilters(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	for _, owner := range []string{"u1", "u2", "u1"} {
		_ = store.Tickets().Create(ctx, &domain.Ticket{Title: "t", Description: "d", CreatedBy: owner})
	}
	owner := "u1"
	got, err := store.Tickets().List(ctx, TicketFilter{CreatedBy: &owner})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("expected 2 tickets for u1, got %d", len(got))
	}
}

func TestMemoryAccounts_ListKeepsInsertionOrder(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	names := []string{"ada", "bob", "cy"}
	for _, name := range names {
		if err := store.Accounts().Create(ctx, &domain.Account{Name: name, Email: name + "@example.com", Role: domain.AccountRoleModerator}); err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
	}
	role := domain.AccountRoleModerator
	got, _ := store.Accounts().List(ctx, AccountFilter{Role: &role})
	for i, name := range names {
		if got[i].Name != name {
			t.Errorf("position %d: expected %s, got %s", i, name, got[i].Name)
		}
	}
}

func TestMemoryAccounts_DuplicateEmail(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	_ = store.Accounts().Create(ctx, &domain.Account{Email: "a@example.com"})
	err := store.Accounts().Create(ctx, &domain.Account{Email: "A@example.com"})
	if !errors.Is(err, ErrDuplicate) {
		t.Errorf("expected ErrDuplicate, got %v", err)
	}
}
