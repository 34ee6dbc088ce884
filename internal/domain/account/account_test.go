package account_test

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidleathers/workflow-insights-backend/internal/domain/account"
	"github.com/davidleathers/workflow-insights-backend/internal/domain/errors"
)

func TestNewAccount(t *testing.T) {
	tests := []struct {
		name     string
		email    string
		password string
		errType  errors.ErrorType
	}{
		{name: "valid", email: " Ann@Example.com ", password: "correct horse"},
		{name: "bad email", email: "not-an-email", password: "correct horse", errType: errors.ErrorTypeValidation},
		{name: "short password", email: "ann@example.com", password: "short", errType: errors.ErrorTypeValidation},
		{name: "long password", email: "ann@example.com", password: strings.Repeat("x", 73), errType: errors.ErrorTypeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := account.NewAccount(tt.email, tt.password)
			if tt.errType != "" {
				require.Error(t, err)
				assert.True(t, errors.IsType(err, tt.errType))
				return
			}
			require.NoError(t, err)
			assert.NotEqual(t, uuid.Nil, a.ID)
			assert.Equal(t, "ann@example.com", a.Email.String())
			assert.NotEqual(t, tt.password, a.PasswordHash)
			assert.False(t, a.CreatedAt.IsZero())
		})
	}
}

func TestAccount_VerifyPassword(t *testing.T) {
	a, err := account.NewAccount("ann@example.com", "correct horse")
	require.NoError(t, err)

	assert.NoError(t, a.VerifyPassword("correct horse"))

	err = a.VerifyPassword("wrong horse")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeUnauthorized))
}
