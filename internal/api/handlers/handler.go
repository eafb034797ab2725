package handlers

import (
	"errors"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"autoqa/backend/internal/recorder"
	"autoqa/backend/internal/repository"
	"autoqa/backend/internal/services"
	"autoqa/backend/pkg/chrome"
	"autoqa/backend/pkg/response"
)

type Handler struct {
	recorder   *recorder.Manager
	recordings *services.RecordingService
	replays    *services.ReplayService
	fs         afero.Fs
	exportDir  string
	logger     *zap.Logger
}

type Options struct {
	Recorder   *recorder.Manager
	Recordings *services.RecordingService
	Replays    *services.ReplayService
	Fs         afero.Fs
	ExportDir  string
	Logger     *zap.Logger
}

func New(opts Options) *Handler {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Handler{
		recorder:   opts.Recorder,
		recordings: opts.Recordings,
		replays:    opts.Replays,
		fs:         opts.Fs,
		exportDir:  opts.ExportDir,
		logger:     opts.Logger.Named("api"),
	}
}

func (h *Handler) HealthCheck(c *gin.Context) {
	response.Success(c, gin.H{
		"status":    "healthy",
		"recording": h.recorder.Active() != nil,
		"timestamp": time.Now().Unix(),
	})
}

func (h *Handler) GetDevices(c *gin.Context) {
	response.Success(c, chrome.DeviceNames())
}

func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "invalid id")
		return 0, false
	}
	return uint(id), true
}

func (h *Handler) storeError(c *gin.Context, err error, action string) {
	if errors.Is(err, repository.ErrNotFound) {
		response.NotFound(c, "Recording not found")
		return
	}
	h.logger.Error(action+" failed", zap.Error(err))
	response.InternalServerError(c, action+" failed: "+err.Error())
}
