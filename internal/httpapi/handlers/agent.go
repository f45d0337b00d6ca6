package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/agent-platform/internal/chat"
	"github.com/suPer8Hu/agent-platform/internal/common"
)

type queryReq struct {
	Query    string `json:"query" binding:"required"`
	ThreadID string `json:"thread_id" binding:"omitempty,uuid"`
	UserID   string `json:"user_id"`
}

// bindQuery parses the body shared by the agent endpoints.
func (h *Handler) bindQuery(c *gin.Context) (chat.QueryRequest, bool) {
	var req queryReq
	if err := c.ShouldBindJSON(&req); err != nil {
		h.invalid(c, "invalid request body: query is required, thread_id must be a UUID")
		return chat.QueryRequest{}, false
	}
	uid, ok := h.userID(c, req.UserID)
	if !ok {
		return chat.QueryRequest{}, false
	}
	return chat.QueryRequest{UserID: uid, ThreadID: req.ThreadID, Query: req.Query}, true
}

func (h *Handler) Query(c *gin.Context) {
	req, ok := h.bindQuery(c)
	if !ok {
		return
	}
	res, err := h.ChatSvc.Query(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	common.OK(c, http.StatusOK, res)
}

func (h *Handler) CreateJob(c *gin.Context) {
	req, ok := h.bindQuery(c)
	if !ok {
		return
	}
	job, created, err := h.ChatSvc.EnqueueQuery(c.Request.Context(), req, c.GetHeader("Idempotency-Key"))
	if err != nil {
		h.fail(c, err)
		return
	}
	status := http.StatusAccepted
	if !created {
		status = http.StatusOK
	}
	common.OK(c, status, gin.H{
		"job_id":    job.ID,
		"thread_id": job.ThreadID,
		"status":    job.Status,
	})
}

func (h *Handler) GetJob(c *gin.Context) {
	uid, ok := h.userID(c, c.Query("user_id"))
	if !ok {
		return
	}
	if !h.ChatSvc.AsyncJobsEnabled() {
		h.fail(c, chat.ErrJobsDisabled)
		return
	}
	job, err := h.ChatSvc.GetJob(c.Request.Context(), uid, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	common.OK(c, http.StatusOK, job)
}

