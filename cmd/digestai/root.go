package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/digestai/digestai/config"
	"github.com/digestai/digestai/log"
)

type rootOptions struct {
	configFile string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "digestai",
		Short:         "Digest AI research assistant and browser task service",
		SilenceUsage:  true,
	}
	cmd.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "config file (YAML)")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")

	cmd.AddCommand(
		newServeCmd(opts),
		newResearchCmd(opts),
		newGraphCmd(),
	)
	return cmd
}

// load reads the configuration and applies the log level.
func (o *rootOptions) load() (*config.Config, error) {
	cfg, err := config.Load(o.configFile)
	if err != nil {
		return nil, err
	}
	level := cfg.Log.Level
	if o.verbose {
		level = "debug"
	}
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	log.SetLogLevel(lvl)
	return cfg, nil
}
