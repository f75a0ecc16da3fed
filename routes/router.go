package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/ecoguide/ecoguide/config"
	"github.com/ecoguide/ecoguide/controllers"
	"github.com/ecoguide/ecoguide/middleware"
	"github.com/ecoguide/ecoguide/utils"
)

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(db *gorm.DB, sink utils.AnalyticsSink) *gin.Engine {
	cfg := config.Get()
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	// Replace default console logger with file-based zap logger
	gl, err := utils.NewRollingFileLogger(cfg.GinPath, cfg.LogLevel, cfg.LogMaxSizeMB, cfg.LogMaxBackups, cfg.LogMaxAgeDays, cfg.LogCompress)
	if err == nil {
		r.Use(utils.Ginzap(gl, time.RFC3339, true))
		r.Use(utils.RecoveryWithZap(gl, false))
	} else {
		// fallback to default recovery if logger failed to init
		r.Use(gin.Recovery())
	}

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}

	r.Use(cors.New(corsCfg))
	r.Use(middleware.RequestID())
	// Record mutating calls into auditoria after each request
	r.Use(middleware.AuditRecorder(db))

	r.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok"})
	})

	authController := controllers.NewAuthController(db)
	progressController := controllers.NewProgressController(db, sink)
	catalogController := controllers.NewCatalogController(db)
	statsController := controllers.NewStatsController(db)
	configController := controllers.NewConfigController()

	api := r.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.Use(middleware.RateLimitMiddleware())
	authGroup.POST("/registro", authController.Register)
	authGroup.POST("/login", authController.Login)
	authGroup.POST("/logout", middleware.AuthRequired(), authController.Logout)
	authGroup.GET("/me", middleware.AuthRequired(), authController.Me)
	authGroup.PATCH("/perfil", middleware.AuthRequired(), authController.UpdateProfile)

	// Public read-only surface
	api.GET("/residuos", catalogController.ListWasteItems)
	api.GET("/residuos/:id", catalogController.GetWasteItem)
	api.GET("/usuarios/:id", authController.GetUserPublic)
	api.GET("/ranking", statsController.GetRanking)
	api.GET("/estadisticas", statsController.GetStats)
	api.GET("/config/juego", configController.GetGameConfig)

	protected := api.Group("")
	protected.Use(middleware.AuthRequired(), middleware.RateLimitMiddleware())
	protected.PUT("/usuarios/:id/progreso", progressController.UpdateProgress)
	protected.POST("/clasificacion/registrar", progressController.RegisterClassification)
	protected.GET("/usuarios/:id/historial", catalogController.ListHistory)

	r.NoRoute(func(ctx *gin.Context) {
		if strings.HasPrefix(ctx.Request.URL.Path, "/api/") {
			utils.Error(ctx, http.StatusNotFound, "ruta no encontrada")
			return
		}
		ctx.JSON(http.StatusNotFound, gin.H{"error": "no encontrado"})
	})

	return r
}
