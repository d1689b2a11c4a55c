package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"clipbot/bot"
	"clipbot/config"
)

// Status is the controller surface the API reads from. Tasks enter the
// pipeline through the inbox, so everything here is read-only.
type Status interface {
	Stats() bot.Stats
	RecentTasks() []bot.TaskSnapshot
}

type Handler struct {
	status Status
	cfg    *config.Config
}

func NewHandler(status Status, cfg *config.Config) *Handler {
	return &Handler{status: status, cfg: cfg}
}

// handleStats reports pipeline counters and queue depths.
func (h *Handler) handleStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.status.Stats())
}

// handleListTasks lists recent task snapshots, newest first.
func (h *Handler) handleListTasks(c *gin.Context) {
	tasks := h.status.RecentTasks()
	if tasks == nil {
		tasks = []bot.TaskSnapshot{}
	}
	c.JSON(http.StatusOK, tasks)
}
