package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newStoryboardCommand(app *appContext) *cobra.Command {
	return &cobra.Command{
		Use:   "storyboard <project-id> <document-id>",
		Short: "Generate a video storyboard from a generated document",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := app.buildEngine()
			if err != nil {
				return err
			}

			sb, err := engine.GenerateStoryboard(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(sb); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "%d slides\n", len(sb.Slides))
			return nil
		},
	}
}
