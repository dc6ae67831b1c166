package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newAnalyzeCommand(app *appContext) *cobra.Command {
	return &cobra.Command{
		Use:   "analyze <github-url>",
		Short: "Clone and analyze a repository, producing its PROJECT.md",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := app.buildEngine()
			if err != nil {
				return err
			}

			project, err := engine.CreateProject(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Project %s registered for %s\n", project.ID, project.RepoName)

			if err := engine.AnalyzeRepository(cmd.Context(), project.ID); err != nil {
				return fmt.Errorf("analysis failed: %w", err)
			}

			st, err := app.openStore()
			if err != nil {
				return err
			}
			analyzed, err := st.GetProject(cmd.Context(), project.ID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Analysis complete at commit %s (%d bytes of PROJECT.md)\n",
				analyzed.CommitSHA, len(analyzed.ProjectMD))
			return nil
		},
	}
}
