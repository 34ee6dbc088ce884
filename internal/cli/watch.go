package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/davidleathers/workflow-insights-backend/internal/infrastructure/config"
	"github.com/davidleathers/workflow-insights-backend/internal/infrastructure/watcher"
)

type watchOptions struct {
	dir    string
	output string
	format string
	settle time.Duration
}

func newWatchCommand(root *rootOptions) *cobra.Command {
	opts := &watchOptions{}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Analyse every CSV file dropped into a directory",
		Long: "watch waits for .csv files to appear in --dir and analyses each one once it stops changing.\n" +
			"Results for uploads/foo.csv are written to <output>/foo/.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := root.load()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			if opts.dir == "" {
				opts.dir = cfg.Uploads.Dir
			}
			if opts.output == "" {
				opts.output = cfg.Export.OutputDir
			}

			w, err := watcher.New(opts.dir, ".csv", opts.settle, logger)
			if err != nil {
				return err
			}
			logger.Info("watching for event logs", zap.String("dir", w.Dir()), zap.String("output", opts.output))

			return watchLoop(cmd, cfg, w, opts, logger)
		},
	}

	cmd.Flags().StringVarP(&opts.dir, "dir", "d", "", "directory to watch (default uploads dir from config)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output root (default from config)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "", "result format: json or yaml")
	cmd.Flags().DurationVar(&opts.settle, "settle", watcher.DefaultSettle, "quiet period before a file is analysed")
	return cmd
}

func watchLoop(cmd *cobra.Command, cfg *config.Config, w *watcher.Watcher, opts *watchOptions, logger *zap.Logger) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	go w.Run(ctx)

	for {
		select {
		case path, ok := <-w.Files():
			if !ok {
				return nil
			}
			res, err := analyzeInto(ctx, cfg, path, opts, logger)
			if err != nil {
				// one bad upload must not stop the watcher
				logger.Error("analysis failed", zap.String("file", path), zap.Error(err))
				continue
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderSummary(path, res))

		case err := <-w.Errors():
			logger.Warn("watch error", zap.Error(err))

		case <-ctx.Done():
			return nil
		}
	}
}

func analyzeInto(ctx context.Context, cfg *config.Config, path string, opts *watchOptions, logger *zap.Logger) (*analysisResult, error) {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	job, err := newAnalysisJob(cfg, filepath.Join(opts.output, name), opts.format, logger.With(zap.String("file", path)))
	if err != nil {
		return nil, err
	}
	return job.runFile(ctx, path)
}
