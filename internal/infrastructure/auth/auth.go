// Package auth issues and validates the bearer tokens of the HTTP API.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/davidleathers/workflow-insights-backend/internal/domain/errors"
)

// DefaultIssuer is written into every token
const DefaultIssuer = "workflow-insights"

// TokenClaims represents validated token claims
type TokenClaims struct {
	AccountID uuid.UUID
	Email     string
	IssuedAt  time.Time
	ExpireAt  time.Time
}

// Service provides token issuance and validation
type Service interface {
	// GenerateToken creates a signed token whose subject is accountID
	GenerateToken(accountID uuid.UUID, email string) (string, error)

	// ValidateToken validates and parses a token
	ValidateToken(token string) (*TokenClaims, error)
}

type claims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
}

type jwtService struct {
	secret []byte
	expiry time.Duration
	issuer string
	now    func() time.Time
}

// NewJWTService creates an HS256 token service
func NewJWTService(secret string, expiry time.Duration) (Service, error) {
	if len(secret) < 16 {
		return nil, errors.NewConfigError("WEAK_JWT_SECRET", "jwt secret must be at least 16 characters")
	}
	if expiry <= 0 {
		return nil, errors.NewConfigError("INVALID_TOKEN_EXPIRY", "token expiry must be positive")
	}
	return &jwtService{secret: []byte(secret), expiry: expiry, issuer: DefaultIssuer, now: time.Now}, nil
}

func (s *jwtService) GenerateToken(accountID uuid.UUID, email string) (string, error) {
	now := s.now()
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   accountID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expiry)),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.New().String(),
		},
		Email: email,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
	if err != nil {
		return "", errors.NewInternalError("sign token").WithCause(err)
	}
	return signed, nil
}

func (s *jwtService) ValidateToken(token string) (*TokenClaims, error) {
	parsed, err := jwt.ParseWithClaims(token, &claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithIssuer(s.issuer), jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, errors.NewUnauthorizedError("invalid or expired token").WithCause(err)
	}

	c, ok := parsed.Claims.(*claims)
	if !ok || !parsed.Valid {
		return nil, errors.NewUnauthorizedError("invalid token claims")
	}

	accountID, err := uuid.Parse(c.Subject)
	if err != nil {
		return nil, errors.NewUnauthorizedError("invalid token subject").WithCause(err)
	}

	return &TokenClaims{
		AccountID: accountID,
		Email:     c.Email,
		IssuedAt:  c.IssuedAt.Time,
		ExpireAt:  c.ExpiresAt.Time,
	}, nil
}
