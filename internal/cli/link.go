package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dshills/scriptroots/internal/roots"
)

func newLinkCommand(ro *rootOptions) *cobra.Command {
	var ps roots.ProjectSettings

	cmd := &cobra.Command{
		Use:   "link <dir>",
		Short: "Link a build project",
		Long: `Link a build project so its scripts are tracked. Linking an already linked
project replaces its settings.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dirs, err := absPaths(args)
			if err != nil {
				return err
			}
			modules, err := absPaths(ps.Modules)
			if err != nil {
				return err
			}

			return withApp(cmd, ro, appOptions{}, func(ctx context.Context, a *app) error {
				next := ps
				next.ExternalProjectPath = dirs[0]
				next.Modules = modules
				if err := a.store.Link(next); err != nil {
					return err
				}

				r := a.manager.RootAt(dirs[0])
				if r == nil {
					return fmt.Errorf("%s was linked but is not registered", dirs[0])
				}
				if ro.jsonOutput {
					return printJSON(cmd.OutOrStdout(), viewOf(r))
				}
				printSuccess(cmd.OutOrStdout(), "linked %s (%s)", r.PathPrefix(), kindColor(r.Kind().String()))
				return nil
			})
		},
	}

	f := cmd.Flags()
	f.StringVar(&ps.ToolHome, "tool-home", "", "build tool installation directory")
	f.StringVar(&ps.Distribution, "distribution", "", "distribution kind, e.g. wrapper or local")
	f.StringVar(&ps.JavaHome, "java-home", "", "JDK used by the build")
	f.StringVar(&ps.ToolVersion, "tool-version", "", "pin the tool version instead of resolving it")
	f.StringSliceVar(&ps.Modules, "module", nil, "module directory (repeatable, default the project dir)")
	return cmd
}

func newUnlinkCommand(ro *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "unlink <dir>",
		Short: "Unlink a build project and delete its persisted data",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dirs, err := absPaths(args)
			if err != nil {
				return err
			}
			return withApp(cmd, ro, appOptions{}, func(ctx context.Context, a *app) error {
				ok, err := a.store.Unlink(dirs[0])
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("%s is not linked", dirs[0])
				}
				printSuccess(cmd.OutOrStdout(), "unlinked %s", dirs[0])
				return nil
			})
		},
	}
}
