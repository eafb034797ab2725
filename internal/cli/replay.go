package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"autoqa/backend/internal/executor"
	"autoqa/backend/internal/recorder"
)

func newReplayCmd(a *app) *cobra.Command {
	var device string

	cmd := &cobra.Command{
		Use:   "replay <file.scroll.json>",
		Short: "Play a recording back in Chrome",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			player := executor.NewReplayer(replayerConfig(a.cfg), a.logger)
			return a.replay(ctx, player, args[0], device, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&device, "device", "d", "", "device preset to emulate")
	return cmd
}

func (a *app) replay(ctx context.Context, player executor.Player, input, device string, out io.Writer) error {
	data, err := recorder.LoadScrollData(a.fs, input)
	if err != nil {
		return err
	}
	if len(data.Steps) == 0 && len(data.ScrollSteps) == 0 {
		fmt.Fprintf(out, "%s has no recorded steps, only the page load is replayed\n", input)
	}

	result := player.Replay(ctx, data, device)
	for _, l := range result.Logs {
		c := color.New(color.Reset)
		switch l.Level {
		case "error":
			c = color.New(color.FgRed)
		case "warn":
			c = color.New(color.FgYellow)
		}
		if l.Duration > 0 {
			c.Fprintf(out, "%s (%dms)\n", l.Message, l.Duration)
		} else {
			c.Fprintln(out, l.Message)
		}
	}

	if !result.Success {
		return errors.New(result.ErrorMessage)
	}
	color.New(color.FgGreen, color.Bold).Fprintf(out, "Replay passed in %s\n", result.Duration().Round(time.Millisecond))
	return nil
}
