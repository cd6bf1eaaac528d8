package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/scriptroots/internal/roots"
)

type rootView struct {
	Path        string    `json:"path"`
	Kind        string    `json:"kind"`
	Importing   bool      `json:"importing"`
	ToolHome    string    `json:"toolHome,omitempty"`
	ToolVersion string    `json:"toolVersion,omitempty"`
	Models      int       `json:"models"`
	ImportedAt  time.Time `json:"importedAt,omitzero"`
	Changed     int       `json:"changedFiles"`
}

func viewOf(r roots.BuildRoot) rootView {
	v := rootView{
		Path:        r.PathPrefix(),
		Kind:        r.Kind().String(),
		Importing:   r.Importing(),
		ToolHome:    r.Settings().ToolHome,
		ToolVersion: r.Settings().ToolVersion,
	}
	if imp, ok := r.(*roots.Imported); ok {
		v.Models = len(imp.Data.Models)
		v.ImportedAt = imp.Data.ImportTimestamp
		if imp.Data.ToolHome != "" {
			v.ToolHome = imp.Data.ToolHome
		}
		for _, ts := range imp.Ledger.Entries() {
			if ts.After(imp.Data.ImportTimestamp) {
				v.Changed++
			}
		}
	}
	return v
}

func newRootsCommand(ro *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "roots",
		Short: "List linked build roots",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, ro, appOptions{}, func(ctx context.Context, a *app) error {
				list := a.manager.Roots()
				views := make([]rootView, 0, len(list))
				for _, r := range list {
					views = append(views, viewOf(r))
				}

				out := cmd.OutOrStdout()
				if ro.jsonOutput {
					return printJSON(out, views)
				}
				if len(views) == 0 {
					printDim(out, "no linked projects")
					return nil
				}
				for _, v := range views {
					printHeader(out, v.Path)
					printLabelValue(out, "Kind", kindColor(v.Kind))
					if v.ToolHome != "" {
						printLabelValue(out, "Tool home", v.ToolHome)
					}
					if v.Kind == roots.KindImported.String() {
						printLabelValue(out, "Models", v.Models)
						printLabelValue(out, "Imported", v.ImportedAt.Format(time.RFC3339))
						printLabelValue(out, "Changed since import", v.Changed)
					}
					if v.Importing {
						printLabelValue(out, "Importing", "yes")
					}
				}
				return nil
			})
		},
	}
}
