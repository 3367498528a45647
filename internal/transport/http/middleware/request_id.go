package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/creativedesigns/retail-iam/internal/infra/logger"
)

const requestIDHeader = "X-Request-ID"

// RequestID attaches a correlation identifier to the request context and the
// response. An inbound X-Request-ID is honoured only when it parses as a
// UUID; anything else is replaced so log correlation never keys on
// caller-chosen text.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader(requestIDHeader)
		if _, err := uuid.Parse(reqID); err != nil {
			reqID = uuid.NewString()
		}

		c.Writer.Header().Set(requestIDHeader, reqID)
		c.Request = c.Request.WithContext(
			context.WithValue(c.Request.Context(), logger.RequestIDKey{}, reqID),
		)

		c.Next()
	}
}
