package cli

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"autoqa/backend/internal/selector"
)

func newRepairCmd(a *app) *cobra.Command {
	var suffixes []string

	cmd := &cobra.Command{
		Use:   "repair [dir]",
		Short: "Fix malformed selectors in generated test files",
		Long: "Rewrites locator selectors such as '.4rating' into valid CSS in every\n" +
			"test file under dir. dir defaults to the configured export directory.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := a.cfg.Recorder.ExportDir
			if len(args) == 1 {
				root = args[0]
			}
			return a.repair(cmd, root, suffixes, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringSliceVar(&suffixes, "suffix", selector.DefaultSuffixes, "file name suffixes to repair")
	return cmd
}

func (a *app) repair(cmd *cobra.Command, root string, suffixes []string, out io.Writer) error {
	summary, err := selector.RepairFiles(cmd.Context(), a.fs, root, suffixes, a.logger)
	if err != nil {
		return err
	}

	fixed := color.New(color.FgGreen)
	failed := color.New(color.FgRed)
	for _, f := range summary.Files {
		switch {
		case f.Error != "":
			failed.Fprintf(out, "✗ %s: %s\n", f.Path, f.Error)
		case len(f.Fixes) > 0:
			fixed.Fprintf(out, "✓ %s\n", f.Path)
			for _, fix := range f.Fixes {
				fmt.Fprintf(out, "    %s -> %s\n", fix.Original, fix.Fixed)
			}
		}
	}

	fmt.Fprintf(out, "Processed %d files, fixed %d, failed %d\n", summary.Processed, summary.Changed, summary.Failed)
	if summary.Failed > 0 {
		return fmt.Errorf("%d files could not be repaired", summary.Failed)
	}
	return nil
}
