package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticket-intake/internal/domain"
)

// AccountFilter defines query params for account listing.
type AccountFilter struct {
	Role   *domain.AccountRole
	Limit  int
	Offset int
}

// AccountRepository defines persistence access for accounts. List returns
// accounts in their natural order: created_at ascending, then id.
type AccountRepository interface {
	Create(ctx context.Context, account *domain.Account) error
	Update(ctx context.Context, account *domain.Account) error
	GetByID(ctx context.Context, id string) (*domain.Account, error)
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)
	List(ctx context.Context, filter AccountFilter) ([]domain.Account, error)
}

const uniqueViolation = "23505"

const accountColumns = `id, name, email, password_hash, role, skills, created_at, updated_at`

type accountRepository struct {
	pool *pgxpool.Pool
}

// NewAccountRepository returns a Postgres-backed implementation.
func NewAccountRepository(pool *pgxpool.Pool) AccountRepository {
	return &accountRepository{pool: pool}
}

func (r *accountRepository) Create(ctx context.Context, account *domain.Account) error {
	const query = `
        INSERT INTO accounts (name, email, password_hash, role, skills)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING id, created_at, updated_at`

	skills := account.Skills
	if skills == nil {
		skills = []string{}
	}
	err := r.pool.QueryRow(ctx, query,
		account.Name,
		account.Email,
		account.PasswordHash,
		account.Role,
		skills,
	).Scan(&account.ID, &account.CreatedAt, &account.UpdatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrDuplicate
	}
	return err
}

func (r *accountRepository) Update(ctx context.Context, account *domain.Account) error {
	const query = `
        UPDATE accounts SET name=$1, email=$2, password_hash=$3, role=$4, skills=$5, updated_at=NOW()
        WHERE id=$6
        RETURNING updated_at`

	skills := account.Skills
	if skills == nil {
		skills = []string{}
	}
	return r.pool.QueryRow(ctx, query,
		account.Name,
		account.Email,
		account.PasswordHash,
		account.Role,
		skills,
		account.ID,
	).Scan(&account.UpdatedAt)
}

func (r *accountRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	if !isRowID(id) {
		return nil, ErrNotFound
	}
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id=$1`
	return scanAccount(r.pool.QueryRow(ctx, query, id))
}

func (r *accountRepository) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE email=$1`
	return scanAccount(r.pool.QueryRow(ctx, query, strings.ToLower(strings.TrimSpace(email))))
}

func (r *accountRepository) List(ctx context.Context, filter AccountFilter) ([]domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts`
	args := []any{}
	clauses := []string{}

	if filter.Role != nil {
		args = append(args, *filter.Role)
		clauses = append(clauses, fmt.Sprintf("role=$%d", len(args)))
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}

	limit, offset := pageBounds(filter.Limit, filter.Offset, 500)
	query += fmt.Sprintf(" ORDER BY created_at ASC, id ASC LIMIT %d OFFSET %d", limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *account)
	}
	return result, rows.Err()
}

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var account domain.Account
	if err := row.Scan(
		&account.ID,
		&account.Name,
		&account.Email,
		&account.PasswordHash,
		&account.Role,
		&account.Skills,
		&account.CreatedAt,
		&account.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &account, nil
}
