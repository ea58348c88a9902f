package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/maisonhai3/AI-planning-for-students/internal/cli/formatter"
	"github.com/maisonhai3/AI-planning-for-students/internal/contract"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

func newGenerateCmd(app *App) *cobra.Command {
	var (
		save     bool
		asJSON   bool
		htmlPath string
	)

	cmd := &cobra.Command{
		Use:   "generate [file|-]",
		Short: "Generate a study plan from a free-text request",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			rt, err := app.build(cmd, needs{llm: true, store: save})
			if err != nil {
				return err
			}
			defer rt.close()

			stop := startSpinner(cmd.ErrOrStderr(), "Đang tạo kế hoạch học tập...")
			start := time.Now()
			out, err := rt.pipeline.Generate(cmd.Context(), input)
			stop()
			if err != nil {
				return err
			}
			meta := out.Meta(time.Since(start))

			if htmlPath != "" {
				if err := os.WriteFile(htmlPath, []byte(out.HTML), 0o644); err != nil {
					return fmt.Errorf("writing html: %w", err)
				}
			}

			var saved *contract.SavePlanResponse
			if save {
				s, err := rt.delivery.Persist(cmd.Context(), out.Plan, out.HTML)
				if err != nil {
					return err
				}
				saved = &contract.SavePlanResponse{Success: true, ID: s.ID, ShareURL: s.ShareURL, SavedAt: s.SavedAt, FixedFields: s.FixedFields}
			}

			w := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(w, generateJSON{
					GenerateResponse: contract.GenerateResponse{Success: true, Plan: out.Plan, HTML: out.HTML, Meta: &meta},
					Saved:            saved,
				})
			}
			fmt.Fprint(w, formatter.FormatMeta(meta)+"\n")
			fmt.Fprint(w, formatter.FormatPlan(out.Plan))
			if saved != nil {
				fmt.Fprintf(w, "\n%s %s\n", formatter.StyleGreen.Render("✔ saved"), saved.ShareURL)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&save, "save", false, "Persist the plan and print its share URL")
	cmd.Flags().StringVar(&htmlPath, "html", "", "Write the rendered HTML to this file")
	addJSONFlag(cmd.Flags(), &asJSON)
	return cmd
}

type generateJSON struct {
	contract.GenerateResponse
	Saved *contract.SavePlanResponse `json:"saved,omitempty"`
}

// startSpinner animates on terminals only and returns the stop function.
func startSpinner(w io.Writer, message string) func() {
	f, ok := w.(*os.File)
	if !ok || !(isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) {
		return func() {}
	}
	return formatter.StartSpinner(w, message)
}
