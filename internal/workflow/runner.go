// Package workflow runs event-triggered pipelines as a sequence of named
// steps. Each step is retried on its own up to a bounded number of
// attempts; a run stops at the first step that cannot complete and keeps
// whatever earlier steps wrote.
package workflow

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-intake/internal/domain"
	"github.com/spec-kit/ticket-intake/internal/observability"
	"github.com/spec-kit/ticket-intake/internal/repository"
)

// Options bound step retries.
type Options struct {
	// MaxAttempts is the total number of tries per step, including the first.
	MaxAttempts int
	// Backoff is the wait before the second attempt; it doubles afterwards.
	Backoff time.Duration
	// StepTimeout bounds a single attempt. Zero means no per-attempt limit.
	StepTimeout time.Duration
}

// RunnerDependencies bundles what a Runner needs.
type RunnerDependencies struct {
	Runs    repository.RunRepository
	Logger  *zap.Logger
	Metrics *observability.Metrics
	Options Options
}

// Runner executes steps and records the outcome of each run.
type Runner struct {
	runs    repository.RunRepository
	logger  *zap.Logger
	metrics *observability.Metrics
	opts    Options
	now     func() time.Time
	sleep   func(context.Context, time.Duration) error
}

// NewRunner builds a Runner. Runs may be nil, in which case run records
// are only logged.
func NewRunner(deps RunnerDependencies) *Runner {
	opts := deps.Options
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		runs:    deps.Runs,
		logger:  logger,
		metrics: deps.Metrics,
		opts:    opts,
		now:     time.Now,
		sleep:   sleepContext,
	}
}

// execution is the state of one run in progress.
type execution struct {
	runner *Runner
	record *domain.WorkflowRun
	logger *zap.Logger
}

func (r *Runner) begin(workflow, subjectID, eventID string) *execution {
	record := &domain.WorkflowRun{
		ID:        uuid.NewString(),
		Workflow:  workflow,
		SubjectID: subjectID,
		EventID:   eventID,
		StartedAt: r.now(),
	}
	return &execution{
		runner: r,
		record: record,
		logger: r.logger.With(
			zap.String("workflow", workflow),
			zap.String("run_id", record.ID),
			zap.String("subject_id", subjectID),
		),
	}
}

// finish stamps the run with its outcome and stores it. A failure to store
// the record is logged; the run outcome is still returned.
func (r *Runner) finish(ctx context.Context, exec *execution, runErr error) (*domain.WorkflowRun, error) {
	record := exec.record
	record.FinishedAt = r.now()
	record.Status = domain.RunStatusSucceeded
	if runErr != nil {
		record.Status = domain.RunStatusFailed
		record.Error = runErr.Error()
		var stepErr *StepError
		if errors.As(runErr, &stepErr) {
			record.FailedStep = stepErr.Step
		}
	}

	elapsed := record.FinishedAt.Sub(record.StartedAt)
	r.metrics.RecordRun(record.Workflow, string(record.Status), elapsed)
	if runErr != nil {
		exec.logger.Warn("workflow run failed",
			zap.String("failed_step", record.FailedStep),
			zap.Duration("elapsed", elapsed),
			zap.Error(runErr))
	} else {
		exec.logger.Info("workflow run succeeded", zap.Duration("elapsed", elapsed))
	}

	if r.runs != nil {
		// the trigger's context may already be gone; the record outlives it
		storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := r.runs.Create(storeCtx, record); err != nil {
			exec.logger.Error("store workflow run", zap.Error(err))
		}
	}
	return record, runErr
}

// Step runs fn as the named step of exec, retrying until it succeeds, the
// attempt budget is spent, fn returns a NonRetriable error, or ctx ends.
func Step[T any](ctx context.Context, exec *execution, name string, fn func(context.Context) (T, error)) (T, error) {
	r := exec.runner
	logger := exec.logger.With(zap.String("step", name))
	rec := domain.StepRecord{Name: name}

	var zero T
	var lastErr error
	for attempt := 1; attempt <= r.opts.MaxAttempts; attempt++ {
		if attempt > 1 {
			backoff := r.opts.Backoff << (attempt - 2)
			if err := r.sleep(ctx, backoff); err != nil {
				lastErr = err
				break
			}
		}
		rec.Attempts = attempt

		attemptCtx, cancel := r.attemptContext(ctx)
		value, err := fn(attemptCtx)
		cancel()
		if err == nil {
			rec.Outcome = domain.StepOutcomeCompleted
			exec.record.Steps = append(exec.record.Steps, rec)
			r.metrics.RecordStep(exec.record.Workflow, name, string(rec.Outcome))
			logger.Debug("step completed", zap.Int("attempt", attempt))
			return value, nil
		}
		lastErr = err

		if IsNonRetriable(err) {
			rec.Outcome = domain.StepOutcomeAborted
			rec.Error = err.Error()
			exec.record.Steps = append(exec.record.Steps, rec)
			r.metrics.RecordStep(exec.record.Workflow, name, string(rec.Outcome))
			logger.Warn("step aborted", zap.Int("attempt", attempt), zap.Error(err))
			return zero, &StepError{Step: name, Attempts: attempt, Err: err}
		}
		logger.Warn("step attempt failed", zap.Int("attempt", attempt), zap.Error(err))
		if ctx.Err() != nil {
			break
		}
	}

	rec.Outcome = domain.StepOutcomeFailed
	rec.Error = lastErr.Error()
	exec.record.Steps = append(exec.record.Steps, rec)
	r.metrics.RecordStep(exec.record.Workflow, name, string(rec.Outcome))
	return zero, &StepError{Step: name, Attempts: rec.Attempts, Err: lastErr}
}

func (r *Runner) attemptContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.opts.StepTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.opts.StepTimeout)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
