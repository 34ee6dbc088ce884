package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/davidleathers/workflow-insights-backend/internal/domain/values"
	"github.com/davidleathers/workflow-insights-backend/internal/infrastructure/config"
	"github.com/davidleathers/workflow-insights-backend/internal/infrastructure/export"
	"github.com/davidleathers/workflow-insights-backend/internal/service/reporting"
)

type analyzeOptions struct {
	input  string
	output string
	format string
	quiet  bool
}

func newAnalyzeCommand(root *rootOptions) *cobra.Command {
	opts := &analyzeOptions{}

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyse one event log and export every result set",
		Example: "  insightctl analyze --input log.csv\n" +
			"  insightctl analyze --input log.csv --output out --format yaml",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := root.load()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			job, err := newAnalysisJob(cfg, opts.output, opts.format, logger)
			if err != nil {
				return err
			}
			res, err := job.runFile(cmd.Context(), opts.input)
			if err != nil {
				return err
			}
			if !opts.quiet {
				fmt.Fprintln(cmd.OutOrStdout(), renderSummary(opts.input, res))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.input, "input", "i", "", "CSV event log to analyse")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output directory (default from config)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "", "result format: json or yaml (default from config)")
	cmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "do not print the summary")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

// analysisJob runs the pipeline and exports its results to one directory
type analysisJob struct {
	pipeline *reporting.Pipeline
	writer   *export.Writer
	logger   *zap.Logger
}

// analysisResult is what a job produced for one log
type analysisResult struct {
	Outcome *reporting.Outcome
	Files   []string
}

func newAnalysisJob(cfg *config.Config, output, format string, logger *zap.Logger) (*analysisJob, error) {
	if output == "" {
		output = cfg.Export.OutputDir
	}
	if format == "" {
		format = cfg.Export.Format
	}
	exportFormat, err := values.NewExportFormat(format)
	if err != nil {
		return nil, err
	}

	pipeline, err := reporting.BuildPipeline(cfg, nil, logger)
	if err != nil {
		return nil, err
	}
	writer, err := export.NewWriter(output, exportFormat, logger)
	if err != nil {
		return nil, err
	}
	return &analysisJob{pipeline: pipeline, writer: writer, logger: logger}, nil
}

func (j *analysisJob) runFile(ctx context.Context, path string) (*analysisResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return j.run(ctx, f)
}

func (j *analysisJob) run(ctx context.Context, in io.Reader) (*analysisResult, error) {
	out, err := j.pipeline.Run(ctx, in, "cli")
	if err != nil {
		return nil, err
	}

	files, err := j.writer.WriteAll(out.Report, out.Bundle)
	if err != nil {
		return nil, err
	}
	cleaned, err := j.writer.WriteCleanedLog(out.Ingest.Log)
	if err != nil {
		return nil, err
	}
	files = append(files, cleaned)

	j.logger.Info("analysis exported",
		zap.String("run_id", out.Report.RunID.String()),
		zap.String("dir", j.writer.Dir()),
		zap.Int("files", len(files)),
	)
	return &analysisResult{Outcome: out, Files: files}, nil
}
