package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-intake/internal/classifier"
	"github.com/spec-kit/ticket-intake/internal/domain"
	"github.com/spec-kit/ticket-intake/internal/matcher"
	"github.com/spec-kit/ticket-intake/internal/notifier"
	"github.com/spec-kit/ticket-intake/internal/repository"
)

// IntakeWorkflow is the name recorded on intake runs.
const IntakeWorkflow = "ticket-intake"

// Intake step names.
const (
	StepFetchTicket    = "fetch-ticket"
	StepUpdateStatus   = "update-ticket-status"
	StepClassify       = "ai-processing"
	StepAssign         = "assign-moderator"
	StepNotifyAssignee = "send-email-notification"
)

// writeShare reserves 1/writeShare of an attempt for the write after
// classification.
const writeShare = 4

// AssignedSubject is the subject of the mail sent to a new assignee.
const AssignedSubject = "Ticket Assigned"

// Assigner chooses who handles a ticket with the given skills.
type Assigner interface {
	Match(ctx context.Context, skills []string) (matcher.Result, error)
}

// IntakeDependencies bundles the collaborators of the intake workflow.
type IntakeDependencies struct {
	Tickets    repository.TicketRepository
	Classifier classifier.Classifier
	Assigner   Assigner
	Notifier   notifier.Notifier
	Runner     *Runner
	// ClassifyTimeout bounds one classifier call. It is further capped so
	// that part of each attempt is left for storing the result.
	ClassifyTimeout time.Duration
}

// Intake classifies a new ticket, assigns it and tells the assignee.
type Intake struct {
	tickets    repository.TicketRepository
	classifier classifier.Classifier
	assigner   Assigner
	notifier   notifier.Notifier
	runner     *Runner

	classifyTimeout time.Duration
}

// NewIntake wires the workflow. A nil classifier behaves as unavailable.
func NewIntake(deps IntakeDependencies) *Intake {
	c := deps.Classifier
	if c == nil {
		c = classifier.Disabled{}
	}
	return &Intake{
		tickets:    deps.Tickets,
		classifier: c,
		assigner:   deps.Assigner,
		notifier:   deps.Notifier,
		runner:     deps.Runner,

		classifyTimeout: deps.ClassifyTimeout,
	}
}

// Run processes one ticket-created trigger. It returns the run record and,
// when the run failed, the error that stopped it. Running the same ticket
// again converges on the same stored state.
func (w *Intake) Run(ctx context.Context, ticketID, eventID string) (*domain.WorkflowRun, error) {
	exec := w.runner.begin(IntakeWorkflow, ticketID, eventID)
	return w.runner.finish(ctx, exec, w.steps(ctx, exec, ticketID))
}

func (w *Intake) steps(ctx context.Context, exec *execution, ticketID string) error {
	ticket, err := Step(ctx, exec, StepFetchTicket, func(ctx context.Context) (*domain.Ticket, error) {
		ticket, err := w.tickets.GetByID(ctx, ticketID)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, NonRetriable(fmt.Errorf("%w: %s", ErrTicketNotFound, ticketID))
		}
		return ticket, err
	})
	if err != nil {
		return err
	}

	_, err = Step(ctx, exec, StepUpdateStatus, func(ctx context.Context) (struct{}, error) {
		_, err := w.tickets.Update(ctx, ticketID, domain.TicketUpdate{Status: domain.StatusPtr(domain.TicketStatusTodo)})
		return struct{}{}, err
	})
	if err != nil {
		return err
	}

	skills, err := Step(ctx, exec, StepClassify, func(ctx context.Context) ([]string, error) {
		return w.classify(ctx, exec.logger, ticket)
	})
	if err != nil {
		return err
	}

	assignee, err := Step(ctx, exec, StepAssign, func(ctx context.Context) (*domain.Account, error) {
		result, err := w.assigner.Match(ctx, skills)
		if err != nil {
			return nil, err
		}
		update := domain.TicketUpdate{SetAssignment: true}
		if result.Account != nil {
			update.AssignedTo = &result.Account.ID
			update.Status = domain.StatusPtr(domain.TicketStatusInProgress)
		}
		if _, err := w.tickets.Update(ctx, ticketID, update); err != nil {
			return nil, err
		}
		exec.logger.Info("ticket assigned",
			zap.String("tier", string(result.Tier)),
			zap.Bool("assigned", result.Account != nil))
		return result.Account, nil
	})
	if err != nil {
		return err
	}

	_, err = Step(ctx, exec, StepNotifyAssignee, func(ctx context.Context) (struct{}, error) {
		if assignee == nil {
			return struct{}{}, nil
		}
		current, err := w.tickets.GetByID(ctx, ticketID)
		if err != nil {
			return struct{}{}, err
		}
		return struct{}{}, w.notifier.Send(ctx, notifier.Message{
			To:      assignee.Email,
			Subject: AssignedSubject,
			Body:    assignedBody(assignee, current),
		})
	})
	return err
}

// classify asks the classifier for a judgment and stores it together with
// the IN_PROGRESS status. An unavailable classifier only advances the
// status and yields no skills.
func (w *Intake) classify(ctx context.Context, logger *zap.Logger, ticket *domain.Ticket) ([]string, error) {
	classifyCtx, cancel := w.classifyContext(ctx)
	judgment, err := w.classifier.Classify(classifyCtx, ticket.Title, ticket.Description)
	cancel()
	if err != nil {
		logger.Warn("classifier unavailable, continuing unclassified", zap.Error(err))
		_, err := w.tickets.Update(ctx, ticket.ID, domain.TicketUpdate{
			Status: domain.StatusPtr(domain.TicketStatusInProgress),
		})
		return nil, err
	}

	classification := &domain.Classification{
		Priority:      domain.NormalizePriority(judgment.Priority),
		HelpfulNotes:  judgment.HelpfulNotes,
		RelatedSkills: domain.NormalizeSkills(judgment.RelatedSkills),
	}
	_, err = w.tickets.Update(ctx, ticket.ID, domain.TicketUpdate{
		Status:         domain.StatusPtr(domain.TicketStatusInProgress),
		Classification: classification,
	})
	if err != nil {
		return nil, err
	}
	return classification.RelatedSkills, nil
}

// classifyContext derives the classifier's deadline from ctx. When ctx has
// a deadline, the classifier gets at most writeShare less of what remains
// so the following write does not inherit an expired context.
func (w *Intake) classifyContext(ctx context.Context) (context.Context, context.CancelFunc) {
	budget := w.classifyTimeout
	if deadline, ok := ctx.Deadline(); ok {
		remaining := time.Until(deadline)
		capped := remaining - remaining/writeShare
		if budget <= 0 || capped < budget {
			budget = capped
		}
	}
	if budget <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, budget)
}

func assignedBody(assignee *domain.Account, ticket *domain.Ticket) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n", assignee.Name)
	fmt.Fprintf(&b, "A new ticket is assigned to you: %s\n", ticket.Title)
	if ticket.Priority != nil {
		fmt.Fprintf(&b, "Priority: %s\n", *ticket.Priority)
	}
	if len(ticket.RelatedSkills) > 0 {
		fmt.Fprintf(&b, "Related skills: %s\n", strings.Join(ticket.RelatedSkills, ", "))
	}
	if ticket.HelpfulNotes != nil && *ticket.HelpfulNotes != "" {
		fmt.Fprintf(&b, "\nNotes:\n%s\n", *ticket.HelpfulNotes)
	}
	return b.String()
}
