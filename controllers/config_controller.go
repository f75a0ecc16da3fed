package controllers

import (
	"github.com/gin-gonic/gin"

	"github.com/ecoguide/ecoguide/config"
	"github.com/ecoguide/ecoguide/utils"
)

// ConfigController serves game tuning values so the front end stays in sync
// with what the server actually awards.
type ConfigController struct{}

func NewConfigController() *ConfigController { return &ConfigController{} }

// GetGameConfig returns reward tuning and the known catalog categories.
func (c *ConfigController) GetGameConfig(ctx *gin.Context) {
	cfg := config.Get()
	utils.Success(ctx, gin.H{
		"puntos_por_acierto":      cfg.PointsPerCorrect,
		"max_clasificaciones_dia": cfg.MaxPerDay,
		"categorias":              []string{"organico", "papel", "plastico", "vidrio", "peligroso"},
	})
}
