package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/suPer8Hu/agent-platform/internal/common"
)

// Identity parses the caller's user id header when present. The header is
// trusted as is; a malformed value is rejected.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(UserIDHeader)
		if raw == "" {
			c.Next()
			return
		}
		id, err := uuid.Parse(raw)
		if err != nil || id == uuid.Nil {
			common.Fail(c, http.StatusUnprocessableEntity, CodeValidation, "invalid X-User-ID header")
			return
		}
		c.Set(UserIDKey, id)
		c.Next()
	}
}

// UserID returns the id set by Identity.
func UserID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(UserIDKey)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}
