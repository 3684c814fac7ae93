package eventbus

import (
	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"
)

// ServeSSE streams one subscriber's messages to an HTTP client as
// Server-Sent Events. Registered by api.Server against a GET route.
func (b *Bus) ServeSSE(c *gin.Context) {
	msgs, unsub := b.Subscribe()
	defer unsub()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	clientGone := c.Writer.CloseNotify()
	for {
		select {
		case <-clientGone:
			return
		case m, ok := <-msgs:
			if !ok {
				return
			}
			_ = sse.Encode(c.Writer, sse.Event{Event: string(m.Kind), Data: m})
			c.Writer.Flush()
		}
	}
}
