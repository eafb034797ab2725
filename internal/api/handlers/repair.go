package handlers

import (
	"github.com/gin-gonic/gin"

	"autoqa/backend/internal/selector"
	"autoqa/backend/pkg/response"
)

func (h *Handler) RepairSelector(c *gin.Context) {
	var req struct {
		Selector string `json:"selector" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	fixed := selector.Repair(req.Selector)
	response.Success(c, gin.H{
		"original": req.Selector,
		"fixed":    fixed,
		"changed":  fixed != req.Selector,
	})
}

// RepairScripts repairs the selectors of every exported test file.
func (h *Handler) RepairScripts(c *gin.Context) {
	if err := h.fs.MkdirAll(h.exportDir, 0o755); err != nil {
		response.InternalServerError(c, "Failed to create export directory: "+err.Error())
		return
	}
	summary, err := selector.RepairFiles(c.Request.Context(), h.fs, h.exportDir, selector.DefaultSuffixes, h.logger)
	if err != nil {
		response.InternalServerError(c, "Selector repair failed: "+err.Error())
		return
	}
	response.SuccessWithMessage(c, "Selector repair finished", summary)
}
