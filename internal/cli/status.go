package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/dshills/scriptroots/internal/roots"
)

type fileStatus struct {
	File       string   `json:"file"`
	Root       string   `json:"root,omitempty"`
	Kind       string   `json:"kind,omitempty"`
	Standalone bool     `json:"standalone"`
	Governed   bool     `json:"governed"`
	UpToDate   bool     `json:"upToDate"`
	Related    bool     `json:"relatedUpToDate"`
	Importing  bool     `json:"importing"`
	ToolHome   string   `json:"toolHome,omitempty"`
	JavaHome   string   `json:"javaHome,omitempty"`
	Classpath  []string `json:"classpath,omitempty"`
}

func statusOf(a *app, path string) fileStatus {
	st := fileStatus{
		File:       path,
		Standalone: a.manager.IsStandaloneScript(path),
		UpToDate:   a.manager.IsUpToDate(path),
		Related:    a.manager.AreRelatedFilesUpToDate(path),
		Importing:  a.manager.IsImportInProgress(path),
	}
	if r := a.manager.FindRoot(path); r != nil {
		st.Root = r.PathPrefix()
		st.Kind = r.Kind().String()
	}
	_, _, st.Governed = a.manager.ScriptModel(path)
	if e, ok := a.cache.Lookup(path); ok && !e.Standalone {
		st.ToolHome = e.ToolHome
		st.JavaHome = e.JavaHome
		st.Classpath = e.Model.Classpath
	}
	return st
}

func newStatusCommand(ro *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status <file>...",
		Short: "Show which root governs each script and whether it is up to date",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := absPaths(args)
			if err != nil {
				return err
			}
			return withApp(cmd, ro, appOptions{}, func(ctx context.Context, a *app) error {
				out := cmd.OutOrStdout()
				statuses := make([]fileStatus, 0, len(files))
				for _, f := range files {
					statuses = append(statuses, statusOf(a, f))
				}
				if ro.jsonOutput {
					return printJSON(out, statuses)
				}

				for _, st := range statuses {
					printHeader(out, st.File)
					switch {
					case st.Root == "":
						printLabelValue(out, "Root", "none (standalone)")
						continue
					case st.Kind == roots.KindUnsupported.String():
						printLabelValue(out, "Root", st.Root+" ("+kindColor(st.Kind)+", standalone)")
						continue
					default:
						printLabelValue(out, "Root", st.Root+" ("+kindColor(st.Kind)+")")
					}
					if !st.Governed {
						printLabelValue(out, "Model", "none")
					}
					printLabelValue(out, "Up to date", yesNo(st.UpToDate))
					printLabelValue(out, "Related files up to date", yesNo(st.Related))
					if st.Importing {
						printLabelValue(out, "Importing", "yes")
					}
					if st.ToolHome != "" {
						printLabelValue(out, "Tool home", st.ToolHome)
					}
					if len(st.Classpath) > 0 {
						printLabelValue(out, "Classpath entries", len(st.Classpath))
					}
				}
				return nil
			})
		},
	}
}

func yesNo(b bool) string {
	if b {
		return successColor.Sprint("yes")
	}
	return warningColor.Sprint("no")
}
