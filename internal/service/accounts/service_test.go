package accounts

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/davidleathers/workflow-insights-backend/internal/domain/account"
	"github.com/davidleathers/workflow-insights-backend/internal/domain/errors"
	"github.com/davidleathers/workflow-insights-backend/internal/domain/values"
	"github.com/davidleathers/workflow-insights-backend/internal/infrastructure/auth"
)

type mockRepository struct {
	mock.Mock
}

func (m *mockRepository) Create(ctx context.Context, a *account.Account) error {
	args := m.Called(ctx, a)
	return args.Error(0)
}

func (m *mockRepository) GetByEmail(ctx context.Context, email values.Email) (*account.Account, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*account.Account), args.Error(1)
}

func newTestService(t *testing.T, repo Repository) (Service, auth.Service) {
	t.Helper()
	tokens, err := auth.NewJWTService("0123456789abcdef-test", time.Hour)
	require.NoError(t, err)
	svc, err := NewService(repo, tokens, zaptest.NewLogger(t))
	require.NoError(t, err)
	return svc, tokens
}

func TestNewService_Validation(t *testing.T) {
	tokens, err := auth.NewJWTService("0123456789abcdef-test", time.Hour)
	require.NoError(t, err)

	_, err = NewService(nil, tokens, zaptest.NewLogger(t))
	assert.Error(t, err)
	_, err = NewService(&mockRepository{}, nil, zaptest.NewLogger(t))
	assert.Error(t, err)
	_, err = NewService(&mockRepository{}, tokens, nil)
	assert.Error(t, err)
}

func TestService_SignUp(t *testing.T) {
	ctx := context.Background()

	t.Run("stores the new account", func(t *testing.T) {
		repo := &mockRepository{}
		repo.On("Create", ctx, mock.MatchedBy(func(a *account.Account) bool {
			return a.Email.String() == "ann@example.com"
		})).Return(nil)

		svc, _ := newTestService(t, repo)
		a, err := svc.SignUp(ctx, "Ann@example.com", "correct horse")
		require.NoError(t, err)
		assert.Equal(t, "ann@example.com", a.Email.String())
		repo.AssertExpectations(t)
	})

	t.Run("duplicate email", func(t *testing.T) {
		repo := &mockRepository{}
		repo.On("Create", ctx, mock.Anything).Return(errors.NewConflictError("email already registered"))

		svc, _ := newTestService(t, repo)
		_, err := svc.SignUp(ctx, "ann@example.com", "correct horse")
		assert.True(t, errors.IsType(err, errors.ErrorTypeConflict))
	})

	t.Run("invalid input never reaches the repository", func(t *testing.T) {
		repo := &mockRepository{}
		svc, _ := newTestService(t, repo)
		_, err := svc.SignUp(ctx, "ann@example.com", "short")
		assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
		repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})
}

func TestService_SignIn(t *testing.T) {
	ctx := context.Background()
	existing, err := account.NewAccount("ann@example.com", "correct horse")
	require.NoError(t, err)

	tests := []struct {
		name     string
		email    string
		password string
		setup    func(repo *mockRepository)
		wantErr  errors.ErrorType
	}{
		{
			name:     "valid credentials",
			email:    "ann@example.com",
			password: "correct horse",
			setup: func(repo *mockRepository) {
				repo.On("GetByEmail", ctx, existing.Email).Return(existing, nil)
			},
		},
		{
			name:     "wrong password",
			email:    "ann@example.com",
			password: "wrong horse",
			setup: func(repo *mockRepository) {
				repo.On("GetByEmail", ctx, existing.Email).Return(existing, nil)
			},
			wantErr: errors.ErrorTypeUnauthorized,
		},
		{
			name:     "unknown email",
			email:    "bob@example.com",
			password: "correct horse",
			setup: func(repo *mockRepository) {
				repo.On("GetByEmail", ctx, values.MustNewEmail("bob@example.com")).Return(nil, errors.NewNotFoundError("account"))
			},
			wantErr: errors.ErrorTypeUnauthorized,
		},
		{
			name:     "malformed email",
			email:    "bob",
			password: "correct horse",
			setup:    func(repo *mockRepository) {},
			wantErr:  errors.ErrorTypeUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockRepository{}
			tt.setup(repo)
			svc, tokens := newTestService(t, repo)

			session, err := svc.SignIn(ctx, tt.email, tt.password)
			if tt.wantErr != "" {
				assert.True(t, errors.IsType(err, tt.wantErr), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, existing.ID, session.AccountID)

			claims, err := tokens.ValidateToken(session.Token)
			require.NoError(t, err)
			assert.Equal(t, existing.ID, claims.AccountID)
		})
	}
}
