package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"autoqa/backend/internal/recorder"
	"autoqa/backend/internal/script"
	"autoqa/backend/internal/services"
)

func newConvertCmd(a *app) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "convert <file.scroll.json>",
		Short: "Generate a Playwright test from a recording's scroll data",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.convert(args[0], output, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default <name>.spec.js next to the input)")
	return cmd
}

func (a *app) convert(input, output string, out io.Writer) error {
	data, err := recorder.LoadScrollData(a.fs, input)
	if err != nil {
		return err
	}
	if data.URL == "" {
		return fmt.Errorf("%s has no url", input)
	}
	if output == "" {
		output = strings.TrimSuffix(strings.TrimSuffix(input, ".json"), ".scroll") + ".spec.js"
	}

	src := services.Convert(data, a.logger)
	if err := script.Validate(src); err != nil {
		a.logger.Warn("Generated script does not parse", zap.String("output", output), zap.Error(err))
	}
	if err := afero.WriteFile(a.fs, output, []byte(src), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", output, err)
	}

	color.New(color.FgGreen).Fprintf(out, "Wrote %s\n", output)
	fmt.Fprintf(out, "  steps: %d, scroll steps: %d\n", len(data.Steps), len(data.ScrollSteps))
	return nil
}
