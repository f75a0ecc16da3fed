package utils

import "github.com/gin-gonic/gin"

// Response helpers for the wire contract the front end expects:
// successes are {"success": true, ...}, failures are {"error": msg} with an
// appropriate HTTP status. Nothing internal (stack traces, SQL, identifiers)
// ever reaches the body.

// Success writes a 200 response with success=true plus any extra fields.
func Success(ctx *gin.Context, extra gin.H) {
	body := gin.H{"success": true}
	for k, v := range extra {
		body[k] = v
	}
	ctx.JSON(200, body)
}

// Error writes a structured error body with the given status.
func Error(ctx *gin.Context, status int, message string) {
	ctx.JSON(status, gin.H{"error": message})
}

// Reject writes an explicit success=false rejection, used by endpoints whose
// contract always carries the success flag.
func Reject(ctx *gin.Context, status int, message string) {
	ctx.JSON(status, gin.H{"success": false, "error": message})
}
