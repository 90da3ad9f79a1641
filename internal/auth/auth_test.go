package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/spec-kit/ticket-intake/internal/domain"
	"github.com/spec-kit/ticket-intake/internal/repository"
	apperrors "github.com/spec-kit/ticket-intake/pkg/util/errorutil"
)

func TestTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager("secret", 5)
	token, exp, err := tm.GenerateToken(&domain.Account{ID: "acc-1", Role: domain.AccountRoleModerator})
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if time.Until(exp) <= 0 {
		t.Errorf("expected future expiry, got %v", exp)
	}
	claims, err := tm.ParseToken(token)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if claims.AccountID != "acc-1" || claims.Role != domain.AccountRoleModerator {
		t.Errorf("unexpected claims %+v", claims)
	}
}

func TestParseTokenRejects(t *testing.T) {
	tm := NewTokenManager("secret", 5)
	token, _, err := tm.GenerateToken(&domain.Account{ID: "acc-1", Role: domain.AccountRoleUser})
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	if _, err := NewTokenManager("other", 5).ParseToken(token); err == nil {
		t.Error("expected signature error")
	}

	expired := NewTokenManager("secret", 5)
	expired.now = func() time.Time { return time.Now().Add(time.Hour) }
	if _, err := expired.ParseToken(token); err == nil {
		t.Error("expected expiry error")
	}
}

func TestParseTokenRequiresIssuer(t *testing.T) {
	tm := NewTokenManager("secret", 5)
	foreign := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		AccountID: "acc-1",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "someone-else",
			Subject:   "acc-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	})
	signed, err := foreign.SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}
	if _, err := tm.ParseToken(signed); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken for foreign issuer, got %v", err)
	}
	if _, err := tm.ParseToken("not-a-jwt"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken for garbage, got %v", err)
	}
}

func TestPasswordHash(t *testing.T) {
	hash, err := HashPassword("hunter22", 4)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if ComparePassword(hash, "hunter22") != nil {
		t.Error("expected password to match")
	}
	if err := ComparePassword(hash, "wrong"); !errors.Is(err, ErrPasswordMismatch) {
		t.Errorf("expected ErrPasswordMismatch, got %v", err)
	}
	if _, err := HashPassword(strings.Repeat("x", MaxPasswordBytes+1), 4); !errors.Is(err, ErrPasswordTooLong) {
		t.Errorf("expected ErrPasswordTooLong, got %v", err)
	}
}

func newAuthApp(t *testing.T) (*fiber.App, *TokenManager, *repository.MemoryStore) {
	t.Helper()
	store := repository.NewMemoryStore()
	tm := NewTokenManager("secret", 5)
	mw := NewAuthMiddleware(tm, store.Accounts())

	app := fiber.New(fiber.Config{ErrorHandler: func(c *fiber.Ctx, err error) error {
		if fe, ok := err.(*fiber.Error); ok {
			return c.SendStatus(fe.Code)
		}
		return c.SendStatus(apperrors.ToDomainError(err).HTTPStatus)
	}})
	app.Get("/admin", mw.Handle, RequireAdmin(), func(c *fiber.Ctx) error {
		p, _ := PrincipalFromContext(c)
		return c.SendString(p.ID())
	})
	return app, tm, store
}

func TestMiddleware(t *testing.T) {
	app, tm, store := newAuthApp(t)
	admin := &domain.Account{Name: "root", Email: "root@example.com", Role: domain.AccountRoleAdmin}
	user := &domain.Account{Name: "joe", Email: "joe@example.com", Role: domain.AccountRoleUser}
	for _, a := range []*domain.Account{admin, user} {
		if err := store.Accounts().Create(context.Background(), a); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	adminToken, _, _ := tm.GenerateToken(admin)
	userToken, _, _ := tm.GenerateToken(user)
	ghostToken, _, _ := tm.GenerateToken(&domain.Account{ID: "ghost", Role: domain.AccountRoleAdmin})

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"empty bearer", "Bearer  ", http.StatusUnauthorized},
		{"garbage token", "Bearer abc", http.StatusUnauthorized},
		{"deleted account", "Bearer " + ghostToken, http.StatusUnauthorized},
		{"insufficient role", "Bearer " + userToken, http.StatusForbidden},
		{"admin", "Bearer " + adminToken, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := app.Test(req)
			if err != nil {
				t.Fatalf("app.Test: %v", err)
			}
			if resp.StatusCode != tt.want {
				t.Errorf("expected %d, got %d", tt.want, resp.StatusCode)
			}
		})
	}
}
