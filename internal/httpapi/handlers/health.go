package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/agent-platform/internal/common"
)

type healthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Hostname  string `json:"hostname"`
	Version   string `json:"version"`
}

func (h *Handler) Health(c *gin.Context) {
	common.OK(c, http.StatusOK, healthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Hostname:  h.Hostname,
		Version:   h.Cfg.Version,
	})
}
