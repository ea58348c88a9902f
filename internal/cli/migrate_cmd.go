package cli

import (
	"fmt"

	"github.com/maisonhai3/AI-planning-for-students/internal/cli/formatter"
	"github.com/spf13/cobra"
)

func newMigrateCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the store schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := app.build(cmd, needs{store: true})
			if err != nil {
				return err
			}
			defer rt.close()

			if err := rt.store.Ping(cmd.Context()); err != nil {
				return fmt.Errorf("pinging %s store: %w", rt.store.Backend, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s store is up to date\n", formatter.StyleGreen.Render("✔"), rt.store.Backend)
			return nil
		},
	}
}
