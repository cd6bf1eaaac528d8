// Package cli implements the scriptroots command tree.
package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dshills/scriptroots/internal/config"
)

// BuildInfo describes the running binary.
type BuildInfo struct {
	Version string
	Commit  string
	Date    string
}

// rootOptions are the flags shared by every command.
type rootOptions struct {
	jsonOutput bool
	noColor    bool
	envFiles   []string
	homeDir    string
}

// NewRootCommand builds the command tree.
func NewRootCommand(info BuildInfo) *cobra.Command {
	if info.Version == "" {
		info.Version = "dev"
	}
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:     "scriptroots",
		Version: info.Version,
		Short:   "Track build roots and the script configuration they provide",
		Long: `scriptroots keeps the configuration imported for build scripts of linked
projects, tracks which scripts changed since their last import, and persists
both across runs.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if opts.noColor {
				color.NoColor = true
			}
		},
	}
	cmd.SetVersionTemplate(fmt.Sprintf("scriptroots {{.Version}} (commit %s, built %s)\n", info.Commit, info.Date))

	pf := cmd.PersistentFlags()
	config.RegisterFlags(pf)
	pf.BoolVar(&opts.jsonOutput, "json", false, "output in JSON format")
	pf.BoolVar(&opts.noColor, "no-color", false, "disable colored output")
	pf.StringSliceVar(&opts.envFiles, "env-file", []string{".env"}, "dotenv files loaded before reading the environment")

	cmd.AddCommand(
		newRootsCommand(opts),
		newStatusCommand(opts),
		newLinkCommand(opts),
		newUnlinkCommand(opts),
		newImportCommand(opts),
		newTouchCommand(opts),
		newWatchCommand(opts),
	)
	return cmd
}

// Execute runs the command tree with args and returns the process exit code.
func Execute(ctx context.Context, info BuildInfo, args []string, stdout, stderr io.Writer) int {
	cmd := NewRootCommand(info)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	if err := cmd.ExecuteContext(ctx); err != nil {
		printError(stderr, err.Error())
		return 1
	}
	return 0
}
