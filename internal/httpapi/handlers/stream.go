package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/agent-platform/internal/chat"
)

const ndjsonContentType = "application/x-ndjson"

// Stream answers with text/event-stream, or newline delimited JSON when the
// client accepts application/x-ndjson. Errors found before the first event
// get a normal JSON error response.
func (h *Handler) Stream(c *gin.Context) {
	req, ok := h.bindQuery(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	events, err := h.ChatSvc.Stream(ctx, req)
	if err != nil {
		h.fail(c, err)
		return
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		h.fail(c, fmt.Errorf("streaming not supported by response writer"))
		return
	}

	ndjson := strings.Contains(c.GetHeader("Accept"), ndjsonContentType)
	if ndjson {
		c.Header("Content-Type", ndjsonContentType)
	} else {
		c.Header("Content-Type", "text/event-stream")
		c.Header("Connection", "keep-alive")
	}
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no") // helpful if behind nginx
	c.Status(http.StatusOK)
	flusher.Flush()

	write := func(e chat.Event) bool {
		b, err := chat.EncodeEvent(e)
		if err != nil {
			h.Log.Error().Err(err).Str("event", string(e.Type())).Msg("encode stream event")
			b = []byte(`{"event":"error","error":"internal error","error_type":"SYSTEM_ERROR"}`)
		}
		if ndjson {
			_, err = fmt.Fprintf(c.Writer, "%s\n", b)
		} else {
			_, err = fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", e.Type(), b)
		}
		flusher.Flush()
		return err == nil
	}

	heartbeat := h.Cfg.StreamHeartbeat
	if heartbeat <= 0 {
		heartbeat = 15 * time.Second
	}
	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()

	for {
		select {
		case e, ok := <-events:
			if !ok {
				return
			}
			if !write(e) {
				return
			}

		case <-ticker.C:
			if ndjson {
				continue
			}
			fmt.Fprint(c.Writer, ": ping\n\n")
			flusher.Flush()

		case <-ctx.Done():
			return
		}
	}
}
