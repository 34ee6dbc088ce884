package values

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidleathers/workflow-insights-backend/internal/domain/errors"
)

func TestNewEmail(t *testing.T) {
	tests := []struct {
		name    string
		address string
		want    string
		wantErr bool
	}{
		{name: "valid simple email", address: "test@example.com", want: "test@example.com"},
		{name: "normalized", address: "  Analyst@Example.COM ", want: "analyst@example.com"},
		{name: "valid email with plus", address: "user+tag@example.com", want: "user+tag@example.com"},
		{name: "empty", address: "", wantErr: true},
		{name: "missing domain", address: "user@", wantErr: true},
		{name: "display name", address: "Ann <ann@example.com>", wantErr: true},
		{name: "no tld", address: "user@localhost", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			email, err := NewEmail(tt.address)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, email.String())
		})
	}
}

func TestEmail_JSON(t *testing.T) {
	email := MustNewEmail("ops@example.com")
	data, err := json.Marshal(email)
	require.NoError(t, err)
	assert.Equal(t, `"ops@example.com"`, string(data))

	var decoded Email
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, email, decoded)

	assert.Error(t, json.Unmarshal([]byte(`"nope"`), &decoded))
}
