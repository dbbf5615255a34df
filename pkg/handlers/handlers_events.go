package handlers

import (
	"io"
	"net/http"
	"time"

	"github.com/arnavshah/route-planner-api/pkg/notify"
	"github.com/gin-gonic/gin"
)

const keepAlive = 25 * time.Second

// Events streams a "changed" event each time ?kind= is written. Clients
// refetch on each event.
func (h *Handler) Events(c *gin.Context) {
	kind, ok := notify.ParseKind(c.Query("kind"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown kind " + c.Query("kind")})
		return
	}

	changes, stop := h.Broker.Subscribe(kind)
	defer stop()

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.SSEvent("ready", gin.H{"kind": kind})
	c.Writer.Flush()

	ticker := time.NewTicker(keepAlive)
	defer ticker.Stop()
	ctx := c.Request.Context()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case _, open := <-changes:
			if !open {
				return false
			}
			c.SSEvent("changed", gin.H{"kind": kind})
			return true
		case <-ticker.C:
			c.SSEvent("ping", gin.H{"kind": kind})
			return true
		}
	})
}
