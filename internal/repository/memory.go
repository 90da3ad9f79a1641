package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/ticket-intake/internal/domain"
)

// MemoryStore keeps tickets, accounts and runs in process memory. It is
// used by tests and by the service when no POSTGRES_DSN is configured.
// Accounts keep insertion order, which doubles as their natural order.
type MemoryStore struct {
	mu       sync.RWMutex
	tickets  []*domain.Ticket
	accounts []*domain.Account
	runs     []domain.WorkflowRun
	now      func() time.Time
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now}
}

// Tickets returns a TicketRepository backed by the store.
func (s *MemoryStore) Tickets() TicketRepository { return memoryTickets{s} }

// Accounts returns an AccountRepository backed by the store.
func (s *MemoryStore) Accounts() AccountRepository { return memoryAccounts{s} }

// Runs returns a RunRepository backed by the store.
func (s *MemoryStore) Runs() RunRepository { return memoryRuns{s} }

type memoryTickets struct{ s *MemoryStore }

func (r memoryTickets) Create(_ context.Context, ticket *domain.Ticket) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if ticket.ID == "" {
		ticket.ID = uuid.NewString()
	}
	if ticket.Status == "" {
		ticket.Status = domain.TicketStatusTodo
	}
	now := r.s.now()
	ticket.CreatedAt = now
	ticket.UpdatedAt = now
	r.s.tickets = append(r.s.tickets, cloneTicket(ticket))
	return nil
}

func (r memoryTickets) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, t := range r.s.tickets {
		if t.ID == id {
			return cloneTicket(t), nil
		}
	}
	return nil, ErrNotFound
}

func (r memoryTickets) Update(_ context.Context, id string, update domain.TicketUpdate) (*domain.Ticket, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range r.s.tickets {
		if t.ID == id {
			if !update.Empty() {
				update.Apply(t)
				t.UpdatedAt = r.s.now()
			}
			return cloneTicket(t), nil
		}
	}
	return nil, ErrNotFound
}

func (r memoryTickets) List(_ context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	statuses := make(map[domain.TicketStatus]struct{}, len(filter.Statuses))
	for _, st := range filter.Statuses {
		statuses[st] = struct{}{}
	}

	var matched []domain.Ticket
	// newest first
	for i := len(r.s.tickets) - 1; i >= 0; i-- {
		t := r.s.tickets[i]
		if filter.CreatedBy != nil && t.CreatedBy != *filter.CreatedBy {
			continue
		}
		if filter.AssignedTo != nil && (t.AssignedTo == nil || *t.AssignedTo != *filter.AssignedTo) {
			continue
		}
		if len(statuses) > 0 {
			if _, ok := statuses[t.Status]; !ok {
				continue
			}
		}
		matched = append(matched, *cloneTicket(t))
	}
	limit, offset := pageBounds(filter.Limit, filter.Offset, 50)
	return page(matched, limit, offset), nil
}

type memoryAccounts struct{ s *MemoryStore }

func (r memoryAccounts) Create(_ context.Context, account *domain.Account) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, a := range r.s.accounts {
		if strings.EqualFold(a.Email, account.Email) {
			return ErrDuplicate
		}
	}
	if account.ID == "" {
		account.ID = uuid.NewString()
	}
	now := r.s.now()
	account.CreatedAt = now
	account.UpdatedAt = now
	r.s.accounts = append(r.s.accounts, cloneAccount(account))
	return nil
}

func (r memoryAccounts) Update(_ context.Context, account *domain.Account) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i, a := range r.s.accounts {
		if a.ID == account.ID {
			account.CreatedAt = a.CreatedAt
			account.UpdatedAt = r.s.now()
			r.s.accounts[i] = cloneAccount(account)
			return nil
		}
	}
	return ErrNotFound
}

func (r memoryAccounts) GetByID(_ context.Context, id string) (*domain.Account, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, a := range r.s.accounts {
		if a.ID == id {
			return cloneAccount(a), nil
		}
	}
	return nil, ErrNotFound
}

func (r memoryAccounts) GetByEmail(_ context.Context, email string) (*domain.Account, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, a := range r.s.accounts {
		if strings.EqualFold(a.Email, strings.TrimSpace(email)) {
			return cloneAccount(a), nil
		}
	}
	return nil, ErrNotFound
}

func (r memoryAccounts) List(_ context.Context, filter AccountFilter) ([]domain.Account, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var matched []domain.Account
	for _, a := range r.s.accounts {
		if filter.Role != nil && a.Role != *filter.Role {
			continue
		}
		matched = append(matched, *cloneAccount(a))
	}
	limit, offset := pageBounds(filter.Limit, filter.Offset, 500)
	return page(matched, limit, offset), nil
}

type memoryRuns struct{ s *MemoryStore }

func (r memoryRuns) Create(_ context.Context, run *domain.WorkflowRun) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *run
	cp.Steps = append([]domain.StepRecord{}, run.Steps...)
	r.s.runs = append(r.s.runs, cp)
	return nil
}

func (r memoryRuns) ListBySubject(_ context.Context, subjectID string) ([]domain.WorkflowRun, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var result []domain.WorkflowRun
	for _, run := range r.s.runs {
		if run.SubjectID == subjectID {
			result = append(result, run)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].StartedAt.Before(result[j].StartedAt)
	})
	return result, nil
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

func cloneTicket(t *domain.Ticket) *domain.Ticket {
	cp := *t
	if t.Priority != nil {
		p := *t.Priority
		cp.Priority = &p
	}
	if t.HelpfulNotes != nil {
		n := *t.HelpfulNotes
		cp.HelpfulNotes = &n
	}
	if t.AssignedTo != nil {
		a := *t.AssignedTo
		cp.AssignedTo = &a
	}
	if t.RelatedSkills != nil {
		cp.RelatedSkills = append([]string{}, t.RelatedSkills...)
	}
	return &cp
}

func cloneAccount(a *domain.Account) *domain.Account {
	cp := *a
	if a.Skills != nil {
		cp.Skills = append([]string{}, a.Skills...)
	}
	return &cp
}
