package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newProjectsCommand(app *appContext) *cobra.Command {
	return &cobra.Command{
		Use:   "projects",
		Short: "List registered projects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := app.openStore()
			if err != nil {
				return err
			}

			projects, err := st.ListProjects(cmd.Context())
			if err != nil {
				return err
			}
			if len(projects) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No projects registered.")
				return nil
			}

			rows := make([][]string, 0, len(projects))
			for _, p := range projects {
				commit := p.CommitSHA
				if len(commit) > 8 {
					commit = commit[:8]
				}
				rows = append(rows, []string{
					p.ID,
					p.RepoName,
					p.Status,
					commit,
					p.CreatedAt.Format("2006-01-02 15:04"),
				})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable(out, []string{"ID", "REPO", "STATUS", "COMMIT", "CREATED"}, rows))
			return nil
		},
	}
}
