package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/agent-platform/internal/chat"
	"github.com/suPer8Hu/agent-platform/internal/common"
)

func (h *Handler) ListThreads(c *gin.Context) {
	uid, ok := h.userID(c, c.Query("user_id"))
	if !ok {
		return
	}
	threads, err := h.ChatSvc.ListThreads(c.Request.Context(), uid)
	if err != nil {
		h.fail(c, err)
		return
	}
	if threads == nil {
		threads = []chat.Thread{}
	}
	common.OK(c, http.StatusOK, threads)
}

type createThreadReq struct {
	AgentType string `json:"agent_type"`
	UserID    string `json:"user_id"`
}

func (h *Handler) CreateThread(c *gin.Context) {
	var req createThreadReq
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.invalid(c, "invalid json")
			return
		}
	}
	uid, ok := h.userID(c, req.UserID)
	if !ok {
		return
	}

	t, err := h.ChatSvc.CreateThread(c.Request.Context(), uid, req.AgentType)
	if err != nil {
		h.fail(c, err)
		return
	}
	common.OK(c, http.StatusCreated, t)
}

func (h *Handler) GetThread(c *gin.Context) {
	uid, ok := h.userID(c, c.Query("user_id"))
	if !ok {
		return
	}
	detail, err := h.ChatSvc.GetThread(c.Request.Context(), uid, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	common.OK(c, http.StatusOK, detail)
}

func (h *Handler) DeleteThread(c *gin.Context) {
	uid, ok := h.userID(c, c.Query("user_id"))
	if !ok {
		return
	}
	if err := h.ChatSvc.DeleteThread(c.Request.Context(), uid, c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
