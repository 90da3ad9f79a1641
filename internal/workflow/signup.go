package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/spec-kit/ticket-intake/internal/domain"
	"github.com/spec-kit/ticket-intake/internal/notifier"
	"github.com/spec-kit/ticket-intake/internal/repository"
)

// SignupWorkflow is the name recorded on signup runs.
const SignupWorkflow = "user-signup"

// Signup step names.
const (
	StepGetUserEmail     = "get-user-email"
	StepSendWelcomeEmail = "send-welcome-email"
)

// WelcomeSubject is the subject of the welcome mail.
const WelcomeSubject = "Welcome to the support desk"

// SignupDependencies bundles the collaborators of the signup workflow.
type SignupDependencies struct {
	Accounts repository.AccountRepository
	Notifier notifier.Notifier
	Runner   *Runner
}

// Signup greets a newly registered account.
type Signup struct {
	accounts repository.AccountRepository
	notifier notifier.Notifier
	runner   *Runner
}

// NewSignup wires the workflow.
func NewSignup(deps SignupDependencies) *Signup {
	return &Signup{accounts: deps.Accounts, notifier: deps.Notifier, runner: deps.Runner}
}

// Run sends the welcome mail to the account registered under email.
func (w *Signup) Run(ctx context.Context, email, eventID string) (*domain.WorkflowRun, error) {
	exec := w.runner.begin(SignupWorkflow, email, eventID)

	account, err := Step(ctx, exec, StepGetUserEmail, func(ctx context.Context) (*domain.Account, error) {
		account, err := w.accounts.GetByEmail(ctx, email)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, NonRetriable(fmt.Errorf("%w: %s", ErrAccountNotFound, email))
		}
		return account, err
	})
	if err != nil {
		return w.runner.finish(ctx, exec, err)
	}

	_, err = Step(ctx, exec, StepSendWelcomeEmail, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, w.notifier.Send(ctx, notifier.Message{
			To:      account.Email,
			Subject: WelcomeSubject,
			Body: fmt.Sprintf("Hi %s,\n\nThanks for signing up. You can now file tickets "+
				"and follow their progress from your account.\n", account.Name),
		})
	})
	return w.runner.finish(ctx, exec, err)
}
