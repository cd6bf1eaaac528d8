package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/dshills/scriptroots/internal/bundle"
	"github.com/dshills/scriptroots/internal/roots"
)

func newImportCommand(ro *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <bundle>",
		Short: "Apply an import result bundle (yaml or json) to its build root",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, ro, appOptions{}, func(ctx context.Context, a *app) error {
				res, err := bundle.Load(a.fs, args[0])
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				a.manager.MarkImportingInProgress(res.WorkingDir, true)
				err = a.manager.OnImportCompleted(res)
				switch {
				case errors.Is(err, roots.ErrSkipped):
					printWarning(out, "%s: nothing new to import", res.WorkingDir)
					return nil
				case errors.Is(err, roots.ErrMissingToolHome):
					printWarning(out, "%s: import has no tool home, kept previous state", res.WorkingDir)
					return nil
				case err != nil:
					return err
				}

				r := a.manager.RootAt(res.WorkingDir)
				if r == nil {
					return roots.ErrUnlinked
				}
				if ro.jsonOutput {
					return printJSON(out, viewOf(r))
				}
				v := viewOf(r)
				printSuccess(out, "%s is %s with %d models", v.Path, kindColor(v.Kind), v.Models)
				return nil
			})
		},
	}
}
