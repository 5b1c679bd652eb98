package main

import (
	"github.com/spf13/cobra"

	"strand/internal/config"
)

// version is stamped at build time via -ldflags.
var version = "dev"

type commandContext struct {
	configFlag *string
	debugFlag  *bool
}

// loadConfig resolves tool settings from the --config flag or default path.
func (c *commandContext) loadConfig() (*config.Config, error) {
	cfg, _, _, err := config.Load(*c.configFlag)
	return cfg, err
}

func (c *commandContext) debug() bool {
	return c.debugFlag != nil && *c.debugFlag
}

func newRootCommand() *cobra.Command {
	var configFlag string
	var debugFlag bool

	ctx := &commandContext{configFlag: &configFlag, debugFlag: &debugFlag}

	rootCmd := &cobra.Command{
		Use:           "strand",
		Short:         "Batch cellranger processing of 10x Genomics samples",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Settings file path")
	rootCmd.PersistentFlags().BoolVarP(&debugFlag, "debug", "d", false, "Verbose logging, including stdout/stderr of all commands")

	rootCmd.AddCommand(newRunCommand(ctx))
	rootCmd.AddCommand(newPlanCommand(ctx))
	rootCmd.AddCommand(newStatusCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))

	return rootCmd
}
