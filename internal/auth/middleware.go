package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-intake/internal/domain"
	"github.com/spec-kit/ticket-intake/internal/repository"
	apperrors "github.com/spec-kit/ticket-intake/pkg/util/errorutil"
)

const principalKey = "auth_principal"

// Principal is the authenticated caller: the freshly loaded account plus
// the token it presented.
type Principal struct {
	Account        *domain.Account
	TokenID        string
	TokenExpiresAt time.Time
}

// ID returns the caller's account id.
func (p *Principal) ID() string { return p.Account.ID }

// Role returns the caller's current role.
func (p *Principal) Role() domain.AccountRole { return p.Account.Role }

// AuthMiddleware validates bearer tokens and loads principals.
type AuthMiddleware struct {
	tokens   *TokenManager
	accounts repository.AccountRepository
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenManager, accounts repository.AccountRepository) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, accounts: accounts}
}

// Handle enforces authentication for protected routes. The account is
// reloaded on every request so role changes apply immediately.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	raw, err := bearerToken(c.Get(fiber.HeaderAuthorization))
	if err != nil {
		return err
	}

	claims, err := m.tokens.ParseToken(raw)
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}

	account, err := m.accounts.GetByID(c.UserContext(), claims.AccountID)
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NewUnauthorized("account not found")
	}
	if err != nil {
		return apperrors.MapError(err)
	}

	principal := &Principal{Account: account, TokenID: claims.ID}
	if claims.ExpiresAt != nil {
		principal.TokenExpiresAt = claims.ExpiresAt.Time
	}
	c.Locals(principalKey, principal)
	return c.Next()
}

func bearerToken(header string) (string, error) {
	if header == "" {
		return "", apperrors.NewUnauthorized("missing authorization header")
	}
	scheme, token, ok := strings.Cut(header, " ")
	token = strings.TrimSpace(token)
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", apperrors.NewUnauthorized("invalid authorization header")
	}
	return token, nil
}

// PrincipalFromContext retrieves the authenticated caller.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	principal, ok := c.Locals(principalKey).(*Principal)
	return principal, ok && principal != nil
}
