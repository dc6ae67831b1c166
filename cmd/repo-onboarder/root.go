package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	app := &appContext{}

	rootCmd := &cobra.Command{
		Use:           "repo-onboarder",
		Short:         "Generate onboarding documentation for repositories with an AI analyst",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			app.close()
		},
	}

	rootCmd.AddCommand(newAnalyzeCommand(app))
	rootCmd.AddCommand(newDocCommand(app))
	rootCmd.AddCommand(newAskCommand(app))
	rootCmd.AddCommand(newStoryboardCommand(app))
	rootCmd.AddCommand(newProjectsCommand(app))
	rootCmd.AddCommand(newServeCommand(app))

	return rootCmd
}
