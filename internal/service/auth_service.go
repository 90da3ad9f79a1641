package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-intake/internal/auth"
	"github.com/spec-kit/ticket-intake/internal/config"
	"github.com/spec-kit/ticket-intake/internal/domain"
	"github.com/spec-kit/ticket-intake/internal/events"
	"github.com/spec-kit/ticket-intake/internal/repository"
	apperrors "github.com/spec-kit/ticket-intake/pkg/util/errorutil"
)

const minPasswordLength = 8

// AuthService coordinates registration, login and account administration.
type AuthService struct {
	accounts   repository.AccountRepository
	publisher  events.Publisher
	tokenMgr   *auth.TokenManager
	bcryptCost int
	logger     *zap.Logger
}

// AuthDependencies encapsulates repo requirements for auth service.
type AuthDependencies struct {
	AccountRepo repository.AccountRepository
	Publisher   events.Publisher
	Logger      *zap.Logger
}

// AccountInput describes a new account.
type AccountInput struct {
	Name     string
	Email    string
	Password string
	Role     domain.AccountRole
	Skills   []string
}

// AccountUpdate changes an account's role and skills. A nil Role or an
// empty Skills keeps the current value.
type AccountUpdate struct {
	Email  string
	Role   *domain.AccountRole
	Skills []string
}

// Session is an issued access token.
type Session struct {
	Account   *domain.Account
	Token     string
	ExpiresAt time.Time
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, deps AuthDependencies) *AuthService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		accounts:   deps.AccountRepo,
		publisher:  deps.Publisher,
		tokenMgr:   auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes),
		bcryptCost: cfg.Auth.BcryptCost,
		logger:     logger,
	}
}

// Signup registers a user account, emits user/signup and logs it in.
func (s *AuthService) Signup(ctx context.Context, input AccountInput) (*Session, error) {
	input.Role = domain.AccountRoleUser
	account, err := s.CreateAccount(ctx, input)
	if err != nil {
		return nil, err
	}
	s.publishSignup(ctx, account)
	return s.issue(account)
}

// CreateAccount stores an account with any role. It is the path used by
// operators to bootstrap staff.
func (s *AuthService) CreateAccount(ctx context.Context, input AccountInput) (*domain.Account, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	details := map[string]any{}
	if _, err := mail.ParseAddress(email); err != nil {
		details["email"] = "invalid"
	}
	switch {
	case len(input.Password) < minPasswordLength:
		details["password"] = "too short"
	case len(input.Password) > auth.MaxPasswordBytes:
		details["password"] = "too long"
	}
	if input.Role == "" {
		input.Role = domain.AccountRoleUser
	}
	if !input.Role.Valid() {
		details["role"] = "invalid"
	}
	if len(details) > 0 {
		return nil, apperrors.NewValidationError("invalid account", details)
	}

	hash, err := auth.HashPassword(input.Password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		name = strings.SplitN(email, "@", 2)[0]
	}
	account := &domain.Account{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         input.Role,
		Skills:       domain.NormalizeSkills(input.Skills),
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.NewConflict("email already registered", map[string]any{"email": email})
		}
		return nil, apperrors.MapError(err)
	}
	return account, nil
}

// Login authenticates by email and password.
func (s *AuthService) Login(ctx context.Context, email, password string) (*Session, error) {
	account, err := s.accounts.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewUnauthorized("invalid credentials")
		}
		return nil, apperrors.MapError(err)
	}
	if err := auth.ComparePassword(account.PasswordHash, password); err != nil {
		return nil, apperrors.NewUnauthorized("invalid credentials")
	}
	return s.issue(account)
}

// UpdateAccount changes role and skills of the account registered under
// the given email.
func (s *AuthService) UpdateAccount(ctx context.Context, update AccountUpdate) (*domain.Account, error) {
	email := strings.ToLower(strings.TrimSpace(update.Email))
	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("account", map[string]any{"email": email})
		}
		return nil, apperrors.MapError(err)
	}
	if update.Role != nil {
		if !update.Role.Valid() {
			return nil, apperrors.NewValidationError("invalid role", map[string]any{"role": *update.Role})
		}
		account.Role = *update.Role
	}
	if skills := domain.NormalizeSkills(update.Skills); len(skills) > 0 {
		account.Skills = skills
	}
	if err := s.accounts.Update(ctx, account); err != nil {
		return nil, apperrors.MapError(err)
	}
	return account, nil
}

// ListAccounts returns accounts in their natural order.
func (s *AuthService) ListAccounts(ctx context.Context, page Page) ([]domain.Account, error) {
	accounts, err := s.accounts.List(ctx, repository.AccountFilter{Limit: page.Limit, Offset: page.Offset})
	return accounts, apperrors.MapError(err)
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

func (s *AuthService) issue(account *domain.Account) (*Session, error) {
	token, exp, err := s.tokenMgr.GenerateToken(account)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return &Session{Account: account, Token: token, ExpiresAt: exp}, nil
}

func (s *AuthService) publishSignup(ctx context.Context, account *domain.Account) {
	if s.publisher == nil {
		return
	}
	event, err := events.NewEvent(events.EventUserSignup, events.UserSignupPayload{
		AccountID: account.ID,
		Email:     account.Email,
	})
	if err == nil {
		err = s.publisher.Publish(ctx, event)
	}
	if err != nil {
		s.logger.Error("publish user/signup", zap.String("account_id", account.ID), zap.Error(err))
	}
}
