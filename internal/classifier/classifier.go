// Package classifier turns ticket text into a triage judgment: a
// priority, the skills needed to resolve the ticket, and notes for the
// moderator who picks it up.
package classifier

import (
	"context"
	"errors"
)

// ErrUnavailable signals that no judgment could be produced. Callers
// treat it as a soft failure.
var ErrUnavailable = errors.New("classifier unavailable")

// Judgment is a complete classification. The priority is returned as
// the model wrote it; callers normalize it.
type Judgment struct {
	Priority      string
	HelpfulNotes  string
	RelatedSkills []string
}

// Classifier produces a Judgment or reports ErrUnavailable. It never
// returns a partially filled Judgment alongside a nil error.
type Classifier interface {
	Classify(ctx context.Context, title, description string) (Judgment, error)
}

// Disabled is used when no classifier endpoint is configured.
type Disabled struct{}

// Classify always reports ErrUnavailable.
func (Disabled) Classify(context.Context, string, string) (Judgment, error) {
	return Judgment{}, ErrUnavailable
}
