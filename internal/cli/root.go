package cli

import (
	"fmt"
	"os"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"autoqa/backend/internal/config"
	"autoqa/backend/pkg/logger"
)

// Version is set at build time with
// -ldflags "-X autoqa/backend/internal/cli.Version=1.2.3".
var Version = "dev"

// app carries what PersistentPreRunE loads to the subcommands.
type app struct {
	configFile string
	cfg        *config.Config
	logger     *zap.Logger
	fs         afero.Fs
}

func NewRootCmd() *cobra.Command {
	a := &app{fs: afero.NewOsFs()}

	cmd := &cobra.Command{
		Use:           "autoqa",
		Short:         "Record browser sessions as Playwright tests.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(a.configFile)
			if err != nil {
				a.logger = logger.Init(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "autoqa"})
				return err
			}
			a.cfg = cfg
			a.logger = logger.Init(cfg.Logger)
			a.logger.Debug("Configuration loaded",
				zap.String("version", Version),
				zap.String("config", a.configFile),
				zap.Bool("database", cfg.Database.Enabled))
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logger.Sync()
		},
	}
	cmd.PersistentFlags().StringVarP(&a.configFile, "config", "c", "", "config file (default is ./config.yaml)")
	cmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	cmd.AddCommand(
		newServeCmd(a),
		newRecordCmd(a),
		newConvertCmd(a),
		newRepairCmd(a),
		newReplayCmd(a),
		newVersionCmd(),
	)
	return cmd
}

// Execute runs the root command and exits non-zero on error.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		logger.L().Error("Command failed", zap.Error(err))
		logger.Sync()
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		// Printing the version needs no configuration.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "autoqa %s\n", Version)
		},
	}
}
