package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"autoqa/backend/internal/models"
	"autoqa/backend/internal/recorder"
	"autoqa/backend/pkg/response"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const (
	wsWriteTimeout = 5 * time.Second
	wsBuffer       = 64
)

func (h *Handler) StartRecording(c *gin.Context) {
	var req struct {
		URL    string `json:"url" binding:"required,url"`
		Device string `json:"device"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	session, err := h.recorder.Start(c.Request.Context(), req.URL, req.Device)
	if err != nil {
		if errors.Is(err, recorder.ErrRecordingInProgress) {
			response.Conflict(c, err.Error())
			return
		}
		h.logger.Error("Failed to start recording", zap.String("url", req.URL), zap.Error(err))
		response.InternalServerError(c, err.Error())
		return
	}

	response.SuccessWithMessage(c, "Recording started", recorder.Result{
		Success:   true,
		Message:   "Recording started",
		SessionID: session.ID,
		URL:       session.URL,
	})
}

func (h *Handler) StopRecording(c *gin.Context) {
	var req struct {
		Name string `json:"name" binding:"max=200"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}
	}

	session, artifacts, err := h.recorder.Stop(c.Request.Context())
	if err != nil {
		if errors.Is(err, recorder.ErrNoRecording) {
			response.NotFound(c, err.Error())
			return
		}
		response.InternalServerError(c, "Failed to save recording: "+err.Error())
		return
	}
	h.register(c, req.Name, session, artifacts)
}

// SaveRecording retries writing the last stopped session after a failed
// save.
func (h *Handler) SaveRecording(c *gin.Context) {
	var req struct {
		Name string `json:"name" binding:"max=200"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}
	}

	session := h.recorder.Last()
	if session == nil {
		response.NotFound(c, recorder.ErrNoRecording.Error())
		return
	}
	if _, saved := session.Artifacts(); saved {
		response.Conflict(c, "Recording is already saved")
		return
	}
	artifacts, err := h.recorder.RetrySave()
	if err != nil {
		response.InternalServerError(c, "Failed to save recording: "+err.Error())
		return
	}
	h.register(c, req.Name, session, artifacts)
}

func (h *Handler) register(c *gin.Context, name string, session *recorder.Session, artifacts recorder.Artifacts) {
	rec, err := h.recordings.Register(c.Request.Context(), name, session, artifacts)
	if err != nil {
		h.logger.Error("Failed to index recording", zap.String("session_id", session.ID), zap.Error(err))
		response.InternalServerError(c, "Failed to index recording: "+err.Error())
		return
	}

	response.SuccessWithMessage(c, "Recording saved", gin.H{
		"recording_id": rec.ID,
		"result": recorder.Result{
			Success:         true,
			Message:         "Recording saved",
			SessionID:       session.ID,
			URL:             session.URL,
			ScriptPath:      artifacts.ScriptPath,
			ScrollDataPath:  artifacts.ScrollDataPath,
			StepCount:       artifacts.StepCount,
			ScrollStepCount: artifacts.ScrollStepCount,
			Script:          artifacts.Script,
		},
	})
}

func (h *Handler) GetRecordingStatus(c *gin.Context) {
	session := h.recorder.Active()
	if session == nil {
		session = h.recorder.Last()
	}
	if session == nil {
		response.Success(c, gin.H{"state": recorder.StateIdle})
		return
	}

	steps := session.Steps()
	if steps == nil {
		steps = make([]models.CapturedStep, 0)
	}
	samples := session.Samples()
	if samples == nil {
		samples = make([]models.ScrollSample, 0)
	}
	response.Success(c, gin.H{
		"session_id":     session.ID,
		"url":            session.URL,
		"device":         session.Device,
		"state":          session.State(),
		"started_at":     session.StartedAt,
		"steps":          steps,
		"scroll_samples": samples,
	})
}

type streamMessage struct {
	Type      string               `json:"type"`
	SessionID string               `json:"session_id,omitempty"`
	Step      *models.CapturedStep `json:"step,omitempty"`
	Error     string               `json:"error,omitempty"`
}

// RecordingWebSocket streams the steps of the active session until it
// stops or the client goes away.
func (h *Handler) RecordingWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	session := h.recorder.Active()
	if session == nil {
		h.write(conn, streamMessage{Type: "error", Error: recorder.ErrNoRecording.Error()})
		return
	}

	steps, cancel := session.Watch(wsBuffer)
	defer cancel()

	go func() {
		_ = conn.SetReadDeadline(time.Time{})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	if !h.write(conn, streamMessage{Type: "connected", SessionID: session.ID}) {
		return
	}
	for step := range steps {
		step := step
		if !h.write(conn, streamMessage{Type: "step", SessionID: session.ID, Step: &step}) {
			return
		}
	}
	if session.State() == recorder.StateStopped {
		h.write(conn, streamMessage{Type: "stopped", SessionID: session.ID})
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(wsWriteTimeout))
}

func (h *Handler) write(conn *websocket.Conn, msg streamMessage) bool {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	if err := conn.WriteJSON(msg); err != nil {
		h.logger.Debug("WebSocket write failed", zap.Error(err))
		return false
	}
	return true
}
