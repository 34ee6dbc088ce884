package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError(t *testing.T) {
	tests := []struct {
		name       string
		err        *AppError
		wantType   ErrorType
		wantStatus int
		wantMsg    string
	}{
		{
			name:       "schema error lists missing columns",
			err:        NewSchemaError([]string{"role", "story_points"}),
			wantType:   ErrorTypeSchema,
			wantStatus: 422,
			wantMsg:    "missing required columns: role, story_points",
		},
		{
			name:       "parse error names row and field",
			err:        NewParseError("timestamp", 7, fmt.Errorf("bad layout")),
			wantType:   ErrorTypeParse,
			wantStatus: 400,
			wantMsg:    "row 7: cannot parse timestamp: bad layout",
		},
		{
			name:       "no data",
			err:        NewNoDataError("slowest case"),
			wantType:   ErrorTypeNoData,
			wantStatus: 404,
			wantMsg:    "no data available for slowest case",
		},
		{
			name:       "config",
			err:        NewConfigError("NEGATIVE_SLA_LIMIT", "sla limit for Created is negative"),
			wantType:   ErrorTypeConfig,
			wantStatus: 500,
			wantMsg:    "sla limit for Created is negative",
		},
		{
			name:       "empty input",
			err:        NewEmptyInputError("event log contains no cases"),
			wantType:   ErrorTypeEmptyInput,
			wantStatus: 422,
			wantMsg:    "event log contains no cases",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantType, tt.err.Type)
			assert.Equal(t, tt.wantStatus, tt.err.StatusCode)
			assert.Equal(t, tt.wantMsg, tt.err.Error())
			assert.True(t, IsType(tt.err, tt.wantType))
		})
	}
}

func TestIsTypeThroughWrapping(t *testing.T) {
	cause := errors.New("connection reset")
	err := Wrap(NewInternalError("store report").WithCause(cause), "upload")

	require.Error(t, err)
	assert.True(t, IsType(err, ErrorTypeInternal))
	assert.False(t, IsType(err, ErrorTypeConfig))
	assert.True(t, IsRetryable(err))
	assert.Equal(t, 500, GetStatusCode(err))
	assert.ErrorIs(t, err, cause)
}

func TestGetStatusCodeDefaults(t *testing.T) {
	assert.Equal(t, 500, GetStatusCode(errors.New("plain")))
	assert.Equal(t, 409, GetStatusCode(NewConflictError("email already registered")))
	assert.Nil(t, Wrap(nil, "ignored"))
}
