package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"
)

func newTouchCommand(ro *rootOptions) *cobra.Command {
	var at string

	cmd := &cobra.Command{
		Use:   "touch <file>...",
		Short: "Record script changes as if the files had been edited",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := absPaths(args)
			if err != nil {
				return err
			}

			var fixed time.Time
			if at != "" {
				if fixed, err = time.Parse(time.RFC3339, at); err != nil {
					return err
				}
			}

			return withApp(cmd, ro, appOptions{}, func(ctx context.Context, a *app) error {
				out := cmd.OutOrStdout()
				for _, f := range files {
					ts := fixed
					if ts.IsZero() {
						ts = time.Now()
						if info, err := a.fs.Stat(f); err == nil {
							ts = info.ModTime()
						}
					}
					if a.manager.FindRoot(f) == nil {
						printWarning(out, "%s is not under a linked project", f)
						continue
					}
					a.manager.FileChanged(f, ts)
					printDim(out, "%s @ %s", f, ts.Format(time.RFC3339Nano))
				}
				return a.manager.FlushLedgers(ctx)
			})
		},
	}
	cmd.Flags().StringVar(&at, "at", "", "RFC 3339 timestamp to record instead of the file's modification time")
	return cmd
}
