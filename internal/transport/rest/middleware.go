package rest

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/gin-gonic/gin"
)

// Tracing opens an X-Ray segment per request.
func Tracing(name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, seg := xray.BeginSegment(c.Request.Context(), name)
		c.Request = c.Request.WithContext(ctx)

		seg.Lock()
		seg.GetHTTP().GetRequest().Method = c.Request.Method
		seg.GetHTTP().GetRequest().URL = c.Request.URL.String()
		seg.Unlock()

		c.Next()

		status := c.Writer.Status()
		seg.Lock()
		seg.GetHTTP().GetResponse().Status = status
		seg.Unlock()
		if status >= 500 {
			seg.Close(fmt.Errorf("http status %d", status))
			return
		}
		seg.Close(nil)
	}
}

func AccessLog(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()
		logger.Info("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(started).String(),
		)
	}
}
