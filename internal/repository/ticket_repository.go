package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticket-intake/internal/domain"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = pgx.ErrNoRows
	// ErrDuplicate is returned when a unique key is already taken.
	ErrDuplicate = errors.New("duplicate record")
)

// TicketFilter captures listing parameters.
type TicketFilter struct {
	CreatedBy  *string
	AssignedTo *string
	Statuses   []domain.TicketStatus
	Limit      int
	Offset     int
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	// Update applies a partial update as a single statement and returns
	// the stored ticket.
	Update(ctx context.Context, id string, update domain.TicketUpdate) (*domain.Ticket, error)
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
}

const ticketColumns = `id, title, description, status, priority, helpful_notes, related_skills,
               created_by, assigned_to, created_at, updated_at`

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (title, description, status, created_by)
        VALUES ($1,$2,$3,$4)
        RETURNING id, created_at, updated_at`
	if ticket.Status == "" {
		ticket.Status = domain.TicketStatusTodo
	}
	return r.pool.QueryRow(ctx, query,
		ticket.Title,
		ticket.Description,
		ticket.Status,
		ticket.CreatedBy,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	if !isRowID(id) {
		return nil, ErrNotFound
	}
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	return scanTicket(r.pool.QueryRow(ctx, query, id))
}

func (r *ticketRepository) Update(ctx context.Context, id string, update domain.TicketUpdate) (*domain.Ticket, error) {
	if !isRowID(id) {
		return nil, ErrNotFound
	}
	if update.Empty() {
		return r.GetByID(ctx, id)
	}

	sets := []string{}
	args := []any{}
	set := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s=$%d", column, len(args)))
	}

	if update.Status != nil {
		set("status", *update.Status)
	}
	if c := update.Classification; c != nil {
		skills := c.RelatedSkills
		if skills == nil {
			skills = []string{}
		}
		set("priority", c.Priority)
		set("helpful_notes", c.HelpfulNotes)
		set("related_skills", skills)
	}
	if update.SetAssignment {
		set("assigned_to", update.AssignedTo)
	}
	sets = append(sets, "updated_at=NOW()")

	args = append(args, id)
	query := fmt.Sprintf(`UPDATE tickets SET %s WHERE id=$%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), ticketColumns)
	return scanTicket(r.pool.QueryRow(ctx, query, args...))
}

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	base := `SELECT ` + ticketColumns + ` FROM tickets`
	clauses := []string{"1=1"}
	args := []any{}

	if filter.CreatedBy != nil {
		args = append(args, *filter.CreatedBy)
		clauses = append(clauses, fmt.Sprintf("created_by=$%d", len(args)))
	}
	if filter.AssignedTo != nil {
		args = append(args, *filter.AssignedTo)
		clauses = append(clauses, fmt.Sprintf("assigned_to=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}

	limit, offset := pageBounds(filter.Limit, filter.Offset, 50)
	query := fmt.Sprintf(`%s WHERE %s ORDER BY created_at DESC, id DESC LIMIT %d OFFSET %d`,
		base, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := row.Scan(
		&ticket.ID,
		&ticket.Title,
		&ticket.Description,
		&ticket.Status,
		&ticket.Priority,
		&ticket.HelpfulNotes,
		&ticket.RelatedSkills,
		&ticket.CreatedBy,
		&ticket.AssignedTo,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}

// isRowID reports whether id has the shape of a primary key. Postgres
// rejects anything else with invalid_text_representation instead of
// matching no rows.
func isRowID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func pageBounds(limit, offset, fallback int) (int, int) {
	if limit <= 0 {
		limit = fallback
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
