// Package accounts handles sign-up and sign-in for API users.
package accounts

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/davidleathers/workflow-insights-backend/internal/domain/account"
	"github.com/davidleathers/workflow-insights-backend/internal/domain/errors"
	"github.com/davidleathers/workflow-insights-backend/internal/domain/values"
	"github.com/davidleathers/workflow-insights-backend/internal/infrastructure/auth"
)

// Repository persists accounts
type Repository interface {
	// Create stores a new account. A taken email yields a conflict error.
	Create(ctx context.Context, a *account.Account) error

	// GetByEmail returns a not-found error for unknown emails
	GetByEmail(ctx context.Context, email values.Email) (*account.Account, error)
}

// Service handles account lifecycle
type Service interface {
	SignUp(ctx context.Context, email, password string) (*account.Account, error)
	SignIn(ctx context.Context, email, password string) (*Session, error)
}

// Session is the result of a successful sign-in
type Session struct {
	Token     string    `json:"token"`
	AccountID uuid.UUID `json:"account_id"`
}

type service struct {
	repo   Repository
	tokens auth.Service
	logger *zap.Logger
}

// NewService creates an account service
func NewService(repo Repository, tokens auth.Service, logger *zap.Logger) (Service, error) {
	if repo == nil {
		return nil, errors.NewConfigError("NIL_REPOSITORY", "account repository cannot be nil")
	}
	if tokens == nil {
		return nil, errors.NewConfigError("NIL_TOKEN_SERVICE", "token service cannot be nil")
	}
	if logger == nil {
		return nil, errors.NewConfigError("NIL_LOGGER", "logger cannot be nil")
	}
	return &service{repo: repo, tokens: tokens, logger: logger}, nil
}

func (s *service) SignUp(ctx context.Context, email, password string) (*account.Account, error) {
	a, err := account.NewAccount(email, password)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, a); err != nil {
		return nil, err
	}

	s.logger.Info("account created", zap.String("account_id", a.ID.String()))
	return a, nil
}

func (s *service) SignIn(ctx context.Context, email, password string) (*Session, error) {
	addr, err := values.NewEmail(email)
	if err != nil {
		return nil, errors.NewUnauthorizedError("invalid email or password")
	}

	a, err := s.repo.GetByEmail(ctx, addr)
	if errors.IsType(err, errors.ErrorTypeNotFound) {
		return nil, errors.NewUnauthorizedError("invalid email or password")
	}
	if err != nil {
		return nil, err
	}
	if err := a.VerifyPassword(password); err != nil {
		s.logger.Debug("sign-in rejected", zap.String("account_id", a.ID.String()))
		return nil, err
	}

	token, err := s.tokens.GenerateToken(a.ID, a.Email.String())
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, AccountID: a.ID}, nil
}
