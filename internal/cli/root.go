// Package cli implements the planner command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/maisonhai3/AI-planning-for-students/internal/cli/formatter"
	"github.com/maisonhai3/AI-planning-for-students/internal/contract"
	"github.com/maisonhai3/AI-planning-for-students/internal/llm"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// App holds process-wide settings shared by all commands.
type App struct {
	Version string

	// NewLLM builds the model client. Nil selects llm.NewClient.
	NewLLM func(ctx context.Context, cfg llm.LLMConfig, observer llm.Observer) (llm.LLMClient, error)

	// LogOutput receives process logs. Nil selects the command's stderr.
	LogOutput io.Writer

	configPath string
}

// NewRootCmd creates the top-level "planner" command and registers all
// subcommands against app.
func NewRootCmd(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:           "planner",
		Short:         "AI study planner for students",
		Version:       app.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&app.configPath, "config", "c", "", "YAML config file (default $PLANNER_CONFIG)")

	root.AddCommand(
		newServeCmd(app),
		newMigrateCmd(app),
		newCheckCmd(app),
		newRepairCmd(app),
		newGenerateCmd(app),
	)
	return root
}

// PrintError writes err for a terminal, showing the stable code of pipeline
// failures.
func PrintError(w io.Writer, err error) {
	var pe *contract.PipelineError
	if errors.As(err, &pe) {
		fmt.Fprintln(w, formatter.FormatError(pe))
		return
	}
	fmt.Fprintln(w, formatter.StyleRed.Render("Error:"), err)
}

func addJSONFlag(fs *pflag.FlagSet, v *bool) {
	fs.BoolVar(v, "json", false, "Print machine-readable JSON instead of a report")
}
