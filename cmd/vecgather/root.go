package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/vecgather/internal/config"
	logpkg "github.com/kailas-cloud/vecgather/internal/logger"
	"github.com/kailas-cloud/vecgather/internal/version"
)

type rootOptions struct {
	env        string
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "vecgather",
		Short:         "Scatter-gather search over sharded Valkey indexes",
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	cmd.PersistentFlags().StringVar(&opts.env, "env", config.GetEnv(), "environment: local, dev, prod")
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "config file (overrides --env lookup)")

	cmd.AddCommand(newServeCmd(opts), newSearchCmd(opts))
	return cmd
}

// load reads the config and builds the logger for a subcommand.
func (o *rootOptions) load() (config.Config, *zap.Logger, error) {
	var (
		cfg config.Config
		err error
	)
	if o.configPath != "" {
		cfg, err = config.LoadFile(o.configPath)
	} else {
		cfg, err = config.Load(o.env)
	}
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logpkg.NewLogger(o.env, cfg.Logging.Level)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("create logger: %w", err)
	}
	return cfg, logger, nil
}
