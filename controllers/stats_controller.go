package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/ecoguide/ecoguide/config"
	"github.com/ecoguide/ecoguide/models"
	"github.com/ecoguide/ecoguide/utils"
)

// StatsController provides the leaderboard and aggregate figures.
type StatsController struct {
	db *gorm.DB
}

// NewStatsController creates a new StatsController instance.
func NewStatsController(db *gorm.DB) *StatsController {
	return &StatsController{db: db}
}

// GetRanking returns the top users by puntos. Served from cache when warm;
// the background warmer and the progress recorder keep the cache honest.
func (s *StatsController) GetRanking(ctx *gin.Context) {
	if b, ok := utils.CacheGetBytes(utils.RankingCacheKey); ok {
		ctx.Data(http.StatusOK, "application/json", b)
		return
	}

	entries, err := utils.FetchRanking(s.db, config.Get().RankingSize)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, "no se pudo cargar el ranking")
		return
	}

	body := utils.RankingResponseBody(entries)
	utils.CacheSetJSON(utils.RankingCacheKey, body, 0)
	ctx.JSON(http.StatusOK, body)
}

// GetStats returns aggregate statistics. Individual failures fall back to
// zero instead of failing the whole endpoint.
func (s *StatsController) GetStats(ctx *gin.Context) {
	var userCount int64
	var attemptCount int64
	var correctCount int64
	var co2Total float64

	if err := s.db.Model(&models.User{}).Count(&userCount).Error; err != nil {
		userCount = 0
	}

	if err := s.db.Model(&models.Attempt{}).Count(&attemptCount).Error; err != nil {
		attemptCount = 0
	}

	if err := s.db.Model(&models.Attempt{}).Where("fue_acierto = ?", true).Count(&correctCount).Error; err != nil {
		correctCount = 0
	}

	if err := s.db.Model(&models.User{}).
		Select("COALESCE(SUM(co2_evitado),0)").
		Scan(&co2Total).Error; err != nil {
		co2Total = 0
	}

	utils.Success(ctx, gin.H{
		"usuarios":        userCount,
		"clasificaciones": attemptCount,
		"aciertos":        correctCount,
		"co2_total":       co2Total,
	})
}
