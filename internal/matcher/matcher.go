// Package matcher picks the account a freshly classified ticket should be
// assigned to.
package matcher

import (
	"context"
	"fmt"
	"strings"

	"github.com/spec-kit/ticket-intake/internal/domain"
	"github.com/spec-kit/ticket-intake/internal/repository"
)

// Tier names which rule produced a match.
type Tier string

const (
	TierSkill     Tier = "skill"
	TierModerator Tier = "moderator"
	TierAdmin     Tier = "admin"
	TierNone      Tier = "none"
)

// Result is the outcome of a match. Account is nil when nobody qualifies.
type Result struct {
	Account *domain.Account
	Tier    Tier
}

// Matcher selects an assignee by skill overlap, falling back to any
// moderator and then to any admin.
type Matcher struct {
	accounts repository.AccountRepository
}

// New returns a Matcher reading candidates from accounts.
func New(accounts repository.AccountRepository) *Matcher {
	return &Matcher{accounts: accounts}
}

// Match returns the first moderator sharing a skill with skills, else the
// first moderator, else the first admin, in the repository's natural
// order. Finding nobody is not an error.
func (m *Matcher) Match(ctx context.Context, skills []string) (Result, error) {
	wanted := skillSet(skills)
	var first, skilled *domain.Account
	err := m.scan(ctx, domain.AccountRoleModerator, func(a domain.Account) bool {
		if first == nil {
			first = &a
		}
		if len(wanted) > 0 && sharesSkill(a.Skills, wanted) {
			skilled = &a
			return false
		}
		return len(wanted) > 0
	})
	if err != nil {
		return Result{}, err
	}
	if skilled != nil {
		return Result{Account: skilled, Tier: TierSkill}, nil
	}
	if first != nil {
		return Result{Account: first, Tier: TierModerator}, nil
	}

	var admin *domain.Account
	err = m.scan(ctx, domain.AccountRoleAdmin, func(a domain.Account) bool {
		admin = &a
		return false
	})
	if err != nil {
		return Result{}, err
	}
	if admin != nil {
		return Result{Account: admin, Tier: TierAdmin}, nil
	}
	return Result{Tier: TierNone}, nil
}

// candidatePage is the number of accounts fetched per List call.
const candidatePage = 200

// scan visits every account with role in natural order, a page at a time,
// until visit returns false.
func (m *Matcher) scan(ctx context.Context, role domain.AccountRole, visit func(domain.Account) bool) error {
	for offset := 0; ; offset += candidatePage {
		page, err := m.accounts.List(ctx, repository.AccountFilter{Role: &role, Limit: candidatePage, Offset: offset})
		if err != nil {
			return fmt.Errorf("list %s accounts: %w", role, err)
		}
		for _, a := range page {
			if !visit(a) {
				return nil
			}
		}
		if len(page) < candidatePage {
			return nil
		}
	}
}

func skillSet(skills []string) map[string]struct{} {
	set := make(map[string]struct{}, len(skills))
	for _, skill := range skills {
		key := strings.ToLower(strings.TrimSpace(skill))
		if key != "" {
			set[key] = struct{}{}
		}
	}
	return set
}

func sharesSkill(candidate []string, wanted map[string]struct{}) bool {
	for _, skill := range candidate {
		if _, ok := wanted[strings.ToLower(strings.TrimSpace(skill))]; ok {
			return true
		}
	}
	return false
}
