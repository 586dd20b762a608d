package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi/proxyutil"
	"go.uber.org/zap"
)

// BodyLimitMiddleware rejects bodies larger than limit, whether or not a content length is sent.
func BodyLimitMiddleware(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > limit {
			logutil.GetLogger(c.Request.Context()).Debug("request body exceed limit",
				zap.Int64("length", c.Request.ContentLength), zap.Int64("limit", limit))
			proxyutil.FailStatus(c, http.StatusRequestEntityTooLarge, fmt.Errorf("body exceed length limit"))
			c.Abort()
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
	}
}
