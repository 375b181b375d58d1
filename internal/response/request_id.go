package response

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ContextKeyRequestID keys the per-request ID in the Gin context; the
// envelope metadata reads it back when a snapshot response is built.
const ContextKeyRequestID = "request_id"

// HeaderRequestID lets callers supply their own ID to correlate snapshot
// API calls with their client-side logs.
const HeaderRequestID = "X-Request-ID"

// RequestIDMiddleware tags every request with an ID, honoring a
// caller-supplied one, and echoes it on the response.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" {
			id = uuid.New().String()
		}
		c.Set(ContextKeyRequestID, id)
		c.Header(HeaderRequestID, id)
		c.Next()
	}
}
