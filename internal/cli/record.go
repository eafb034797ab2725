package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"autoqa/backend/internal/recorder"
)

func newRecordCmd(a *app) *cobra.Command {
	var device string

	cmd := &cobra.Command{
		Use:   "record <url>",
		Short: "Record a session in a visible browser until Enter is pressed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.record(ctx, newManager(a, true), args[0], device, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&device, "device", "d", "", "device preset to emulate")
	return cmd
}

func (a *app) record(ctx context.Context, mgr *recorder.Manager, url, device string, in io.Reader, out io.Writer) error {
	started := mgr.StartRecording(ctx, url, device)
	if !started.Success {
		return fmt.Errorf("%s", started.Message)
	}

	color.New(color.FgGreen, color.Bold).Fprintf(out, "Recording %s\n", started.URL)
	fmt.Fprintf(out, "Session %s. Press Enter to stop.\n", started.SessionID)

	enter := make(chan struct{})
	go func() {
		_, _ = bufio.NewReader(in).ReadString('\n')
		close(enter)
	}()

	select {
	case <-enter:
	case <-ctx.Done():
		a.logger.Info("Interrupted, saving recording")
	}

	stopped := mgr.StopRecording(context.WithoutCancel(ctx))
	if !stopped.Success {
		return fmt.Errorf("%s", stopped.Message)
	}

	color.New(color.FgGreen).Fprintf(out, "Saved %s\n", stopped.ScriptPath)
	fmt.Fprintf(out, "  scroll data: %s\n", stopped.ScrollDataPath)
	fmt.Fprintf(out, "  steps: %d, scroll steps: %d\n", stopped.StepCount, stopped.ScrollStepCount)
	a.logger.Info("Recording saved",
		zap.String("script", stopped.ScriptPath),
		zap.Int("steps", stopped.StepCount))
	return nil
}
