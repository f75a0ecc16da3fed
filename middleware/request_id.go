package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ContextRequestIDKey stores the request trace id inside Gin context.
const ContextRequestIDKey = "request_id"

// RequestID tags every request with a uuid, echoed in the X-Request-ID
// header and carried into audit rows and access logs.
func RequestID() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		id := ctx.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		ctx.Set(ContextRequestIDKey, id)
		ctx.Writer.Header().Set("X-Request-ID", id)
		ctx.Next()
	}
}
