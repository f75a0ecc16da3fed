package middleware

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/ecoguide/ecoguide/models"
)

// AuditRecorder appends a row to the auditoria table after each successful
// mutating API call. Best-effort: a failed insert never affects the response.
func AuditRecorder(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		switch c.Request.Method {
		case "POST", "PUT", "PATCH", "DELETE":
		default:
			return
		}
		status := c.Writer.Status()
		if status < 200 || status >= 300 {
			return
		}

		var usuarioID uint
		if v, ok := c.Get(ContextUserIDKey); ok {
			if id, ok := v.(uint); ok {
				usuarioID = id
			}
		}

		requestID, _ := c.Get(ContextRequestIDKey)
		rid, _ := requestID.(string)

		ruta := c.FullPath()
		if ruta == "" {
			ruta = c.Request.URL.Path
		}

		_ = db.Create(&models.AuditEntry{
			UsuarioID: usuarioID,
			Accion:    c.Request.Method + " " + ruta,
			Detalle:   c.ClientIP(),
			Ruta:      c.Request.URL.Path,
			RequestID: rid,
		}).Error
	}
}
