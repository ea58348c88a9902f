package cli

import (
	"fmt"

	"github.com/maisonhai3/AI-planning-for-students/internal/cli/formatter"
	"github.com/maisonhai3/AI-planning-for-students/internal/contract"
	"github.com/maisonhai3/AI-planning-for-students/internal/domain"
	"github.com/maisonhai3/AI-planning-for-students/internal/guard"
	"github.com/spf13/cobra"
)

type screeningJSON struct {
	Guard guard.InputGuardResult `json:"guard"`
	Route *domain.RouterOutput   `json:"route,omitempty"`
}

func newCheckCmd(app *App) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "check [file|-]",
		Short: "Run the input guard and router on a planning request",
		Long: "Reads a free-text planning request and reports the input guard verdict\n" +
			"and, for safe input, the difficulty tier. Exits non-zero when blocked.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			rt, err := app.build(cmd, needs{})
			if err != nil {
				return err
			}
			defer rt.close()

			sc := rt.pipeline.Screen(cmd.Context(), input)
			if asJSON {
				if err := writeJSON(cmd.OutOrStdout(), screeningJSON{Guard: sc.Guard, Route: sc.Route}); err != nil {
					return err
				}
			} else {
				fmt.Fprint(cmd.OutOrStdout(), formatter.FormatScreening(sc.Guard, sc.Route))
			}
			if !sc.Guard.IsSafe {
				return contract.NewError(contract.ErrInputRejected, "", nil)
			}
			return nil
		},
	}

	addJSONFlag(cmd.Flags(), &asJSON)
	return cmd
}
