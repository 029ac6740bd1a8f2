package middleware

import (
	"net/http"

	"salon-chat/internal/transport/httpdto"
	"salon-chat/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorHandler turns errors pushed with c.Error into a JSON error body for
// handlers that did not write one themselves. The response carries the
// request id so a client report can be matched to the server log line.
func ErrorHandler(l *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err
		if l != nil {
			l.ErrorCtx(c.Request.Context(), "request error", zap.Error(err))
		}
		if c.Writer.Written() {
			return
		}
		status := c.Writer.Status()
		if status < http.StatusBadRequest {
			status = http.StatusInternalServerError
		}
		resp := httpdto.NewErrorResponse(err.Error(), "INTERNAL_ERROR").
			WithRequestID(c.Writer.Header().Get("X-Request-Id"))
		c.JSON(status, resp)
	}
}
