// Package account models the users that upload event logs.
package account

import (
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/davidleathers/workflow-insights-backend/internal/domain/errors"
	"github.com/davidleathers/workflow-insights-backend/internal/domain/values"
)

// Password length bounds. bcrypt ignores bytes past 72.
const (
	MinPasswordLength = 8
	MaxPasswordLength = 72
)

type Account struct {
	ID           uuid.UUID    `json:"id"`
	Email        values.Email `json:"email"`
	PasswordHash string       `json:"-"`
	CreatedAt    time.Time    `json:"created_at"`
}

// NewAccount validates the credentials and hashes the password
func NewAccount(email, password string) (*Account, error) {
	addr, err := values.NewEmail(email)
	if err != nil {
		return nil, err
	}
	if err := ValidatePassword(password); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, errors.NewInternalError("hash password").WithCause(err)
	}

	return &Account{
		ID:           uuid.New(),
		Email:        addr,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}, nil
}

func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return errors.NewValidationError("WEAK_PASSWORD", "password must be at least 8 characters")
	}
	if len(password) > MaxPasswordLength {
		return errors.NewValidationError("PASSWORD_TOO_LONG", "password must be at most 72 bytes")
	}
	return nil
}

// VerifyPassword returns an unauthorized error when password does not match
func (a *Account) VerifyPassword(password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(password)); err != nil {
		return errors.NewUnauthorizedError("invalid email or password")
	}
	return nil
}
