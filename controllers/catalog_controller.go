package controllers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/ecoguide/ecoguide/models"
	"github.com/ecoguide/ecoguide/utils"
)

// CatalogController serves the read-only waste catalog and per-user attempt history.
type CatalogController struct {
	db *gorm.DB
}

// NewCatalogController creates a new controller instance.
func NewCatalogController(db *gorm.DB) *CatalogController {
	return &CatalogController{db: db}
}

// ListWasteItems returns the catalog, optionally filtered by categoria.
func (c *CatalogController) ListWasteItems(ctx *gin.Context) {
	categoria := strings.TrimSpace(ctx.Query("categoria"))

	cacheKey := "cache:residuos:" + categoria
	if b, ok := utils.CacheGetBytes(cacheKey); ok {
		ctx.Data(http.StatusOK, "application/json", b)
		return
	}

	query := c.db.Order("dificultad ASC, id ASC")
	if categoria != "" {
		query = query.Where("categoria = ?", categoria)
	}

	var items []models.WasteItem
	if err := query.Find(&items).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, "no se pudo cargar el catálogo")
		return
	}

	body := gin.H{"success": true, "residuos": items}
	utils.CacheSetJSON(cacheKey, body, time.Hour)
	ctx.JSON(http.StatusOK, body)
}

// GetWasteItem returns one catalog entry by id.
func (c *CatalogController) GetWasteItem(ctx *gin.Context) {
	id, ok := parseUintParam(ctx, "id")
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, "id de residuo inválido")
		return
	}

	cacheKey := "cache:residuo:" + strconv.FormatUint(uint64(id), 10)
	if b, ok := utils.CacheGetBytes(cacheKey); ok {
		ctx.Data(http.StatusOK, "application/json", b)
		return
	}

	var item models.WasteItem
	if err := c.db.First(&item, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			utils.Error(ctx, http.StatusNotFound, "residuo no encontrado")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, "no se pudo cargar el residuo")
		return
	}

	body := gin.H{"success": true, "residuo": item}
	utils.CacheSetJSON(cacheKey, body, time.Hour)
	ctx.JSON(http.StatusOK, body)
}

// ListHistory returns the authenticated user's attempt history, newest first.
// Only the owner may read their history.
func (c *CatalogController) ListHistory(ctx *gin.Context) {
	targetID, ok := parseUintParam(ctx, "id")
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, "id de usuario inválido")
		return
	}

	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, "no autorizado")
		return
	}
	if userID != targetID {
		utils.Error(ctx, http.StatusForbidden, "no puedes consultar el historial de otro usuario")
		return
	}

	page, pageSize := parsePagination(ctx)

	var total int64
	if err := c.db.Model(&models.Attempt{}).Where("usuario_id = ?", targetID).Count(&total).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, "no se pudo cargar el historial")
		return
	}

	var attempts []models.Attempt
	if err := c.db.Where("usuario_id = ?", targetID).
		Order("fecha DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&attempts).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, "no se pudo cargar el historial")
		return
	}

	utils.Success(ctx, gin.H{
		"historial": attempts,
		"pagination": gin.H{
			"page":        page,
			"page_size":   pageSize,
			"total":       total,
			"total_pages": int((total + int64(pageSize) - 1) / int64(pageSize)),
		},
	})
}
