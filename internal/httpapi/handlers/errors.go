package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/agent-platform/internal/chat"
	"github.com/suPer8Hu/agent-platform/internal/common"
	"github.com/suPer8Hu/agent-platform/internal/httpapi/middleware"
)

const (
	codeForbidden     = 40301
	codeNotFound      = 40401
	codeJobNotFound   = 40402
	codeBusy          = 40901
	codeJobsDisabled  = 50301
	codeInternalError = middleware.CodeInternal
)

// fail maps service errors to a status code and the error envelope.
func (h *Handler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, chat.ErrValidation):
		common.Fail(c, http.StatusUnprocessableEntity, middleware.CodeValidation, err.Error())
	case errors.Is(err, chat.ErrNotFound):
		common.Fail(c, http.StatusNotFound, codeNotFound, "thread not found")
	case errors.Is(err, chat.ErrJobNotFound):
		common.Fail(c, http.StatusNotFound, codeJobNotFound, "job not found")
	case errors.Is(err, chat.ErrNotAuthorized):
		common.Fail(c, http.StatusForbidden, codeForbidden, "thread belongs to another user")
	case errors.Is(err, chat.ErrThreadBusy):
		common.Fail(c, http.StatusConflict, codeBusy, err.Error())
	case errors.Is(err, chat.ErrJobsDisabled):
		common.Fail(c, http.StatusServiceUnavailable, codeJobsDisabled, err.Error())
	default:
		h.Log.Error().Err(err).
			Str("request_id", c.GetString(middleware.RequestIDKey)).
			Str("route", c.FullPath()).
			Msg("request failed")
		common.Fail(c, http.StatusInternalServerError, codeInternalError, "internal error")
	}
}

func (h *Handler) invalid(c *gin.Context, msg string) {
	common.Fail(c, http.StatusUnprocessableEntity, middleware.CodeValidation, msg)
}
