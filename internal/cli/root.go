// Package cli implements the insightctl command line.
package cli

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/davidleathers/workflow-insights-backend/internal/infrastructure/config"
	"github.com/davidleathers/workflow-insights-backend/internal/infrastructure/telemetry"
)

type rootOptions struct {
	configPath string
	logLevel   string
}

// NewRootCommand builds the insightctl command tree
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "insightctl",
		Short:         "Analyse workflow event logs",
		Long:          "insightctl runs the process analytics over CSV event logs and writes every result set to disk.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", config.DefaultPath, "configuration file")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level override (debug, info, warn, error)")

	root.AddCommand(
		newAnalyzeCommand(opts),
		newFeaturesCommand(opts),
		newWatchCommand(opts),
	)
	return root
}

// Execute runs the command tree with ctx
func Execute(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}

func (o *rootOptions) load() (*config.Config, *zap.Logger, error) {
	cfg, err := config.LoadFrom(o.configPath)
	if err != nil {
		return nil, nil, err
	}
	level := cfg.LogLevel
	if o.logLevel != "" {
		level = o.logLevel
	}
	logger, err := telemetry.NewZapLogger(level, true)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}
