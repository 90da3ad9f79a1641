package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-intake/internal/api/dto"
	"github.com/spec-kit/ticket-intake/internal/domain"
	"github.com/spec-kit/ticket-intake/internal/service"
	apperrors "github.com/spec-kit/ticket-intake/pkg/util/errorutil"
)

// UsersHandler exposes signup, login and account administration.
type UsersHandler struct {
	auth *service.AuthService
}

// NewUsersHandler builds handler.
func NewUsersHandler(authService *service.AuthService) *UsersHandler {
	return &UsersHandler{auth: authService}
}

// Signup POST /auth/signup.
func (h *UsersHandler) Signup(c *fiber.Ctx) error {
	var req dto.SignupRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	session, err := h.auth.Signup(c.UserContext(), service.AccountInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Skills:   req.Skills,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": authResponse(session)})
}

// Login POST /auth/login.
func (h *UsersHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	session, err := h.auth.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": authResponse(session)})
}

// UpdateUser PATCH /users.
func (h *UsersHandler) UpdateUser(c *fiber.Ctx) error {
	var req dto.UpdateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Email == "" {
		return apperrors.NewValidationError("email required", nil)
	}
	account, err := h.auth.UpdateAccount(c.UserContext(), service.AccountUpdate{
		Email:  req.Email,
		Role:   req.Role,
		Skills: req.Skills,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": accountResponse(account)})
}

// ListUsers GET /users.
func (h *UsersHandler) ListUsers(c *fiber.Ctx) error {
	accounts, err := h.auth.ListAccounts(c.UserContext(), parsePage(c))
	if err != nil {
		return err
	}
	items := make([]dto.AccountResponse, 0, len(accounts))
	for i := range accounts {
		items = append(items, accountResponse(&accounts[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

func accountResponse(account *domain.Account) dto.AccountResponse {
	skills := account.Skills
	if skills == nil {
		skills = []string{}
	}
	return dto.AccountResponse{
		ID:        account.ID,
		Name:      account.Name,
		Email:     account.Email,
		Role:      account.Role,
		Skills:    skills,
		CreatedAt: account.CreatedAt,
	}
}

func authResponse(session *service.Session) dto.AuthResponse {
	return dto.AuthResponse{
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt,
		Account:   accountResponse(session.Account),
	}
}
