// Package system exposes operational endpoints for administrators: a live
// stream of the process log over server-sent events.
package system

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Vibez0-CONNECT/vibez/internal/pkg/nativelog"
)

const streamBufSize = 512

type Handler struct {
	logger *zap.Logger
}

func NewHandler(logger *zap.Logger) *Handler {
	return &Handler{logger: logger}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	g := rg.Group("/system", authMW)
	g.GET("/log/stream", h.stream)
}

// stream subscribes the client to realtime log frames. The subscription is
// dropped as soon as the client goes away; a slow consumer loses frames
// rather than backpressuring the log pipeline.
func (h *Handler) stream(c *gin.Context) {
	id, frames := nativelog.Subscribe(streamBufSize)
	defer nativelog.Unsubscribe(id)
	h.logger.Info("log stream subscriber attached", zap.Int("stream_id", id))

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Flush()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-frames:
			if !ok {
				return
			}
			if frame == "" {
				continue
			}
			c.SSEvent("log", frame)
			c.Writer.Flush()
		}
	}
}
