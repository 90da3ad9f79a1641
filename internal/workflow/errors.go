package workflow

import (
	"errors"
	"fmt"
)

var (
	// ErrTicketNotFound aborts an intake run whose ticket does not exist.
	ErrTicketNotFound = errors.New("ticket not found")
	// ErrAccountNotFound aborts a signup run whose account does not exist.
	ErrAccountNotFound = errors.New("account not found")
)

// NonRetriableError marks a step failure that must not be retried. The
// run is abandoned at that step.
type NonRetriableError struct {
	Err error
}

func (e *NonRetriableError) Error() string { return e.Err.Error() }

func (e *NonRetriableError) Unwrap() error { return e.Err }

// NonRetriable wraps err so the runner aborts instead of retrying.
func NonRetriable(err error) error {
	if err == nil {
		return nil
	}
	return &NonRetriableError{Err: err}
}

// IsNonRetriable reports whether err carries a NonRetriableError.
func IsNonRetriable(err error) bool {
	var nr *NonRetriableError
	return errors.As(err, &nr)
}

// StepError is returned by a run that stopped at a step.
type StepError struct {
	Step     string
	Attempts int
	Err      error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %s failed after %d attempt(s): %v", e.Step, e.Attempts, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }
