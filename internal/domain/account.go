package domain

import (
	"strings"
	"time"
)

// AccountRole enumerates what an account may do.
type AccountRole string

const (
	AccountRoleUser      AccountRole = "user"
	AccountRoleModerator AccountRole = "moderator"
	AccountRoleAdmin     AccountRole = "admin"
)

// Valid reports whether r is a known role.
func (r AccountRole) Valid() bool {
	switch r {
	case AccountRoleUser, AccountRoleModerator, AccountRoleAdmin:
		return true
	}
	return false
}

// IsStaff reports whether the role handles tickets.
func (r AccountRole) IsStaff() bool {
	return r == AccountRoleModerator || r == AccountRoleAdmin
}

// Account is a person who files or handles tickets. Skills only matter
// for moderators.
type Account struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         AccountRole
	Skills       []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NormalizeSkills trims, lowercases and de-duplicates skill tags while
// keeping their first-seen order.
func NormalizeSkills(skills []string) []string {
	seen := make(map[string]struct{}, len(skills))
	out := make([]string, 0, len(skills))
	for _, skill := range skills {
		key := strings.ToLower(strings.TrimSpace(skill))
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	return out
}
