package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/iliyamo/flasky/internal/logger"
)

var configFile string

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "flasky",
		Short:         "Flasky social blogging server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configFile, "config", "", "Optional config file (yaml, json, toml or env)")
	root.AddCommand(
		newServeCommand(),
		newWorkerCommand(),
		newMigrateCommand(),
		newDeployCommand(),
		newRolesCommand(),
		newFakeCommand(),
	)
	return root
}

func main() {
	err := newRootCommand().Execute()
	if err != nil {
		logger.Error(err)
	}
	logger.CloseLogger()
	if err != nil {
		os.Exit(1)
	}
}
