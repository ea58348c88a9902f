package cli

import (
	"fmt"

	"github.com/maisonhai3/AI-planning-for-students/internal/cli/formatter"
	"github.com/maisonhai3/AI-planning-for-students/internal/contract"
	"github.com/spf13/cobra"
)

func newRepairCmd(app *App) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "repair [file|-]",
		Short: "Validate and repair a study plan JSON payload",
		Long: "Runs the output guard on a plan payload and reports which repair rules\n" +
			"fired. With --json the repaired plan is printed instead.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			cfg, err := app.loadConfig(needs{})
			if err != nil {
				return err
			}

			res := cfg.Repair.OutputGuard().ValidateAndRepair(payload)
			out := cmd.OutOrStdout()
			switch {
			case asJSON && res.IsValid:
				if err := writeJSON(out, res.ParsedPlan); err != nil {
					return err
				}
			case asJSON:
				if err := writeJSON(out, res); err != nil {
					return err
				}
			default:
				fmt.Fprint(out, formatter.FormatRepair(res))
				if res.IsValid {
					fmt.Fprint(out, "\n"+formatter.FormatPlan(res.ParsedPlan))
				}
			}
			if !res.IsValid {
				return contract.NewError(contract.ErrInvalidPlan, fmt.Sprintf("%d error(s)", len(res.Errors)), nil)
			}
			return nil
		},
	}

	addJSONFlag(cmd.Flags(), &asJSON)
	return cmd
}
