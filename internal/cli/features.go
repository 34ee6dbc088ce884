package cli

import (
	"github.com/spf13/cobra"

	"github.com/davidleathers/workflow-insights-backend/internal/domain/values"
	"github.com/davidleathers/workflow-insights-backend/internal/infrastructure/export"
	"github.com/davidleathers/workflow-insights-backend/internal/infrastructure/ingest"
	"github.com/davidleathers/workflow-insights-backend/internal/service/insights"
)

func newFeaturesCommand(root *rootOptions) *cobra.Command {
	var input, format string

	cmd := &cobra.Command{
		Use:   "features",
		Short: "Print per-case features of an event log",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := root.load()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			if format == "" {
				format = cfg.Export.Format
			}
			exportFormat, err := values.NewExportFormat(format)
			if err != nil {
				return err
			}

			reader, err := ingest.NewReader(logger, nil)
			if err != nil {
				return err
			}
			res, err := reader.ReadFile(cmd.Context(), input)
			if err != nil {
				return err
			}

			data, err := export.Encode(exportFormat, insights.Features(res.Log))
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "CSV event log")
	cmd.Flags().StringVarP(&format, "format", "f", "", "output format: json or yaml")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}
