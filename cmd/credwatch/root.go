package main

import (
	"github.com/spf13/cobra"

	"github.com/open-sspm/credwatch/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:           "credwatch",
	Short:         "credwatch reports expiring Microsoft Entra application credentials and emails their owners.",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		structured := commandUsesStructuredLogging(cmd)
		setCommandExecutionContext(commandExecutionContext{
			CommandPath:       cmd.CommandPath(),
			UsesStructuredLog: structured,
		})
		if !structured {
			return nil
		}
		if _, err := logging.BootstrapFromEnv(logging.BootstrapOptions{Command: cmd.CommandPath()}); err != nil {
			return preRunError(err)
		}
		return nil
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(runCmd, workerCmd, configCheckCmd)
}
