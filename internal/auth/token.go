package auth

import (
	"errors"
	"fmt"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/spec-kit/ticket-intake/internal/domain"
)

// Issuer is stamped on every access token and required when parsing.
const Issuer = "ticket-intake"

// ErrInvalidToken wraps every reason a bearer token is refused.
var ErrInvalidToken = errors.New("invalid token")

// TokenManager issues and verifies HS256 access tokens.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenManager builds a manager. A non-positive TTL means one hour.
func NewTokenManager(secret string, ttlMinutes int) *TokenManager {
	if ttlMinutes <= 0 {
		ttlMinutes = 60
	}
	return &TokenManager{secret: []byte(secret), ttl: time.Duration(ttlMinutes) * time.Minute, now: time.Now}
}

// Claims is the token payload. Role is informational; the middleware
// reloads the account so role changes apply before the token expires.
type Claims struct {
	AccountID string             `json:"aid"`
	Role      domain.AccountRole `json:"role"`
	jwt.RegisteredClaims
}

// GenerateToken signs a token for account and returns its expiry.
func (tm *TokenManager) GenerateToken(account *domain.Account) (string, time.Time, error) {
	issuedAt := tm.now()
	expiresAt := issuedAt.Add(tm.ttl)
	claims := &Claims{
		AccountID: account.ID,
		Role:      account.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    Issuer,
			Subject:   account.ID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(tm.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// ParseToken verifies signature, issuer and expiry and returns the claims.
// All failures wrap ErrInvalidToken.
func (tm *TokenManager) ParseToken(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (any, error) {
		return tm.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(tm.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.AccountID == "" || claims.AccountID != claims.Subject {
		return nil, fmt.Errorf("%w: subject mismatch", ErrInvalidToken)
	}
	return claims, nil
}
