package values

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidleathers/workflow-insights-backend/internal/domain/errors"
)

func TestNewExportFormat(t *testing.T) {
	tests := []struct {
		name    string
		format  string
		want    string
		wantErr bool
		errCode string
	}{
		{name: "valid json format", format: "json", want: FormatJSON},
		{name: "valid yaml format", format: "yaml", want: FormatYAML},
		{name: "yml alias", format: "YML", want: FormatYAML},
		{name: "format with leading dot", format: ".csv", want: FormatCSV},
		{name: "format with whitespace", format: " json ", want: FormatJSON},
		{name: "empty format", format: "", wantErr: true, errCode: "EMPTY_FORMAT"},
		{name: "unsupported format", format: "parquet", wantErr: true, errCode: "UNSUPPORTED_FORMAT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ef, err := NewExportFormat(tt.format)
			if tt.wantErr {
				require.Error(t, err)
				var appErr *errors.AppError
				require.ErrorAs(t, err, &appErr)
				assert.Equal(t, tt.errCode, appErr.Code)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, ef.String())
		})
	}
}

func TestExportFormat_Properties(t *testing.T) {
	assert.Equal(t, "application/json", JSONFormat().MimeType())
	assert.Equal(t, "common_paths.yaml", YAMLFormat().Filename("common_paths"))
	assert.True(t, YAMLFormat().IsStructured())
	assert.False(t, CSVFormat().IsStructured())
	assert.Equal(t, ".bin", ExportFormat{}.Extension())

	ef, err := NewExportFormatFromFilename("report.YAML")
	require.NoError(t, err)
	assert.Equal(t, FormatYAML, ef.String())

	_, err = NewExportFormatFromFilename("report")
	assert.Error(t, err)
}
