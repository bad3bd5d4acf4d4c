package trace

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"cashrecon/internal/log"
)

// HeaderRequestID carries the request id in both directions
const HeaderRequestID = "X-Request-ID"

const ginRequestIDKey = "request_id"

// Middleware tags every request with an id, reusing a well-formed incoming
// X-Request-ID. The id is echoed in the response and attached to the request
// context so every log line of the request carries it.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(HeaderRequestID))
		if id == "" || len(id) > 64 {
			id = GenerateRequestID()
		}

		c.Set(ginRequestIDKey, id)
		c.Header(HeaderRequestID, id)
		c.Request = c.Request.WithContext(log.ContextWithRequestID(c.Request.Context(), id))

		c.Next()
	}
}

// GenerateRequestID creates a unique request id
func GenerateRequestID() string {
	return "req_" + uuid.NewString()
}

// GetRequestID extracts the request id from ctx
func GetRequestID(ctx context.Context) string {
	return log.RequestIDFrom(ctx)
}
