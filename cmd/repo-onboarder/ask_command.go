package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newAskCommand(app *appContext) *cobra.Command {
	return &cobra.Command{
		Use:   "ask <project-id> <question...>",
		Short: "Ask a question about an analyzed project",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := app.buildEngine()
			if err != nil {
				return err
			}

			question := strings.Join(args[1:], " ")
			answer, err := engine.Ask(cmd.Context(), args[0], question, nil)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), answer)
			return nil
		},
	}
}
