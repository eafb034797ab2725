package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"autoqa/backend/internal/executor"
	"autoqa/backend/internal/models"
	"autoqa/backend/internal/services"
	"autoqa/backend/pkg/response"
)

func (h *Handler) GetRecordings(c *gin.Context) {
	recordings, err := h.recordings.Recent(c.Request.Context())
	if err != nil {
		h.storeError(c, err, "List recordings")
		return
	}
	for i := range recordings {
		recordings[i].Content = ""
	}
	response.List(c, recordings, len(recordings))
}

func (h *Handler) GetRecording(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	rec, err := h.recordings.Get(c.Request.Context(), id)
	if err != nil {
		h.storeError(c, err, "Load recording")
		return
	}
	response.Success(c, rec)
}

func (h *Handler) ExportRecording(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	rec, err := h.recordings.Export(c.Request.Context(), id)
	if err != nil {
		h.storeError(c, err, "Export recording")
		return
	}
	response.SuccessWithMessage(c, "Recording exported", gin.H{
		"id":          rec.ID,
		"export_path": rec.ExportPath,
		"status":      rec.Status,
	})
}

func (h *Handler) DeleteRecording(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.recordings.Delete(c.Request.Context(), id); err != nil {
		h.storeError(c, err, "Delete recording")
		return
	}
	response.SuccessWithMessage(c, "Recording deleted", nil)
}

func (h *Handler) ReplayRecording(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	replay, err := h.replays.Start(c.Request.Context(), id)
	switch {
	case err == nil:
		response.SuccessWithMessage(c, "Replay queued", replay)
	case errors.Is(err, services.ErrNotReplayable):
		response.BadRequest(c, err.Error())
	case errors.Is(err, executor.ErrQueueFull):
		response.Conflict(c, err.Error())
	default:
		h.storeError(c, err, "Start replay")
	}
}

func (h *Handler) GetReplays(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	replays, err := h.recordings.Replays(c.Request.Context(), id)
	if err != nil {
		h.storeError(c, err, "List replays")
		return
	}
	if replays == nil {
		replays = make([]models.Replay, 0)
	}
	response.List(c, replays, len(replays))
}

func (h *Handler) CancelReplay(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if !h.replays.Cancel(id) {
		response.NotFound(c, "Replay is not running")
		return
	}
	h.logger.Info("Replay cancelled", zap.Uint("replay_id", id))
	response.SuccessWithMessage(c, "Replay cancelled", nil)
}
