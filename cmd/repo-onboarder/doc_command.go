package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"repo_onboarder/pkg/profile"
)

func newDocCommand(app *appContext) *cobra.Command {
	var title string
	var outPath string

	types := make([]string, 0, len(profile.DocTypes()))
	for _, dt := range profile.DocTypes() {
		types = append(types, string(dt))
	}

	cmd := &cobra.Command{
		Use:   "doc <project-id> <type>",
		Short: "Generate one document for an analyzed project",
		Long:  "Generate one document for an analyzed project.\n\nTypes: " + strings.Join(types, ", "),
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			docType := profile.DocType(args[1])
			if !docType.Valid() {
				return fmt.Errorf("unknown document type %q (known: %s)", args[1], strings.Join(types, ", "))
			}

			engine, err := app.buildEngine()
			if err != nil {
				return err
			}

			doc, err := engine.GenerateDocument(cmd.Context(), args[0], docType, title)
			if err != nil {
				return err
			}

			if outPath != "" {
				if err := os.WriteFile(outPath, []byte(doc.Content), 0o644); err != nil {
					return fmt.Errorf("write %s: %w", outPath, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote %q to %s\n", doc.Title, outPath)
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), doc.Content)
			return nil
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "Title for custom documents")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Write the document to a file instead of stdout")
	return cmd
}
