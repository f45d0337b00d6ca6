package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/suPer8Hu/agent-platform/internal/httpapi/middleware"
)

// userID resolves the caller from the X-User-ID header, falling back to a
// user_id supplied in the query string or body. When both are present they
// must agree.
func (h *Handler) userID(c *gin.Context, fallback string) (uuid.UUID, bool) {
	hdr, hasHdr := middleware.UserID(c)
	fallback = strings.TrimSpace(fallback)
	if fallback == "" {
		if !hasHdr {
			h.invalid(c, "X-User-ID header is required")
			return uuid.Nil, false
		}
		return hdr, true
	}

	id, err := uuid.Parse(fallback)
	if err != nil || id == uuid.Nil {
		h.invalid(c, "invalid user_id")
		return uuid.Nil, false
	}
	if hasHdr && hdr != id {
		h.invalid(c, "user_id does not match X-User-ID")
		return uuid.Nil, false
	}
	return id, true
}
