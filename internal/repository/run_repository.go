package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticket-intake/internal/domain"
)

// RunRepository stores workflow run records.
type RunRepository interface {
	Create(ctx context.Context, run *domain.WorkflowRun) error
	ListBySubject(ctx context.Context, subjectID string) ([]domain.WorkflowRun, error)
}

type runRepository struct {
	pool *pgxpool.Pool
}

// NewRunRepository builds repository.
func NewRunRepository(pool *pgxpool.Pool) RunRepository {
	return &runRepository{pool: pool}
}

func (r *runRepository) Create(ctx context.Context, run *domain.WorkflowRun) error {
	const query = `
        INSERT INTO workflow_runs (id, workflow, subject_id, event_id, status, failed_step, error, steps, started_at, finished_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`
	steps := run.Steps
	if steps == nil {
		steps = []domain.StepRecord{}
	}
	_, err := r.pool.Exec(ctx, query,
		run.ID,
		run.Workflow,
		run.SubjectID,
		run.EventID,
		run.Status,
		run.FailedStep,
		run.Error,
		steps,
		run.StartedAt,
		run.FinishedAt,
	)
	return err
}

func (r *runRepository) ListBySubject(ctx context.Context, subjectID string) ([]domain.WorkflowRun, error) {
	const query = `
        SELECT id, workflow, subject_id, event_id, status, failed_step, error, steps, started_at, finished_at
        FROM workflow_runs WHERE subject_id=$1 ORDER BY started_at ASC`
	rows, err := r.pool.Query(ctx, query, subjectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.WorkflowRun
	for rows.Next() {
		var run domain.WorkflowRun
		if err := rows.Scan(
			&run.ID,
			&run.Workflow,
			&run.SubjectID,
			&run.EventID,
			&run.Status,
			&run.FailedStep,
			&run.Error,
			&run.Steps,
			&run.StartedAt,
			&run.FinishedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, run)
	}
	return result, rows.Err()
}
