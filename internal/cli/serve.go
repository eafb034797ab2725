package cli

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"autoqa/backend/internal/api/handlers"
	"autoqa/backend/internal/api/routes"
	"autoqa/backend/internal/config"
	"autoqa/backend/internal/executor"
	"autoqa/backend/internal/recorder"
	"autoqa/backend/internal/repository"
	"autoqa/backend/internal/services"
	"autoqa/backend/pkg/database"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the recording API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}
}

func (a *app) serve(ctx context.Context) error {
	cfg, log := a.cfg, a.logger

	repo, closeRepo, err := openRepository(cfg, log)
	if err != nil {
		return err
	}
	defer closeRepo()

	recordings := services.NewRecordingService(repo, a.fs, cfg.Recorder, log)
	if added, err := recordings.Rebuild(ctx); err != nil {
		log.Warn("Failed to rebuild recording index", zap.Error(err))
	} else {
		log.Info("Recording index ready", zap.Int("rebuilt", added))
	}

	mgr := newManager(a, false)

	exec := executor.New(executor.NewReplayer(replayerConfig(cfg), log), cfg.Chrome.MaxInstances, log)
	defer exec.Shutdown()

	if cfg.Retention.Enabled {
		scheduler, err := services.NewSchedulerService(recordings, cfg.Retention.Schedule, cfg.Retention.MaxAge, log)
		if err != nil {
			return err
		}
		scheduler.Start()
		defer scheduler.Stop()
	}

	statusSync := services.NewStatusSyncService(recordings, cfg.Retention.SyncInterval, log)
	statusSync.Start()
	defer statusSync.Stop()

	gin.SetMode(cfg.Server.Mode)
	router := routes.SetupRoutes(handlers.New(handlers.Options{
		Recorder:   mgr,
		Recordings: recordings,
		Replays:    services.NewReplayService(recordings, exec, log),
		Fs:         a.fs,
		ExportDir:  cfg.Recorder.ExportDir,
		Logger:     log,
	}), log)

	srv := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if mgr.Active() != nil {
		session, artifacts, err := mgr.Stop(shutdownCtx)
		if err != nil {
			log.Error("Failed to save active recording on shutdown", zap.Error(err))
		} else if _, err := recordings.Register(shutdownCtx, "", session, artifacts); err != nil {
			log.Warn("Failed to index recording saved on shutdown", zap.Error(err))
		}
	}

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
		return err
	}
	log.Info("Server exited")
	return nil
}

func openRepository(cfg *config.Config, log *zap.Logger) (repository.RecordingRepository, func(), error) {
	if !cfg.Database.Enabled {
		log.Info("Database disabled, using in-memory recording index")
		return repository.NewMemoryRepository(), func() {}, nil
	}
	db, err := database.Open(cfg, log)
	if err != nil {
		return nil, nil, err
	}
	return repository.NewGormRepository(db), func() {
		if err := database.Close(db); err != nil {
			log.Warn("Failed to close database", zap.Error(err))
		}
	}, nil
}

func newManager(a *app, forceVisible bool) *recorder.Manager {
	cfg := a.cfg
	headless := cfg.Chrome.HeadlessMode && !forceVisible
	return recorder.NewManager(recorder.Options{
		OutputDir:       cfg.Recorder.OutputDir,
		ScrollThreshold: cfg.Recorder.ScrollThreshold,
		SelectorRepair:  cfg.Recorder.SelectorRepair,
	}, a.fs, recorder.ChromeFactory(recorder.ChromeConfig{
		ChromePath:  cfg.Chrome.Path,
		Headless:    headless,
		LoadTimeout: cfg.Chrome.LoadTimeout,
	}, a.logger), a.logger)
}

func replayerConfig(cfg *config.Config) executor.Config {
	return executor.Config{
		ChromePath: cfg.Chrome.Path,
		Headless:   cfg.Chrome.HeadlessMode,
		Timeout:    cfg.Chrome.ReplayTimeout,
		StepDelay:  300 * time.Millisecond,
	}
}
