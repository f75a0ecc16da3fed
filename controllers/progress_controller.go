package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ecoguide/ecoguide/config"
	"github.com/ecoguide/ecoguide/models"
	"github.com/ecoguide/ecoguide/utils"
)

// ProgressController records classification attempts. Each submission writes
// the historial row and the user aggregate inside one transaction against
// the primary store, then mirrors the event to the analytics sink without
// blocking the response.
//
// Two variants exist for historical reasons: the PUT endpoint trusts the
// client-supplied deltas, while the POST endpoint recomputes the reward
// server-side. New clients should use the POST variant.
type ProgressController struct {
	db   *gorm.DB
	sink utils.AnalyticsSink
}

var (
	errResiduoNotFound = errors.New("residuo no encontrado")
	errDailyLimit      = errors.New("límite diario de clasificaciones alcanzado")
)

// NewProgressController creates a new controller instance.
func NewProgressController(db *gorm.DB, sink utils.AnalyticsSink) *ProgressController {
	return &ProgressController{db: db, sink: sink}
}

// UpdateProgress handles PUT /api/usuarios/:id/progreso with client-supplied deltas.
func (p *ProgressController) UpdateProgress(ctx *gin.Context) {
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
		utils.Error(ctx, http.StatusForbidden, "no puedes modificar el progreso de otro usuario")
		return
	}

	type request struct {
		Puntos     *int     `json:"puntos"`
		CO2Evitado *float64 `json:"co2_evitado"`
		ResiduoID  *uint    `json:"residuo_id"`
		FueAcierto *bool    `json:"fue_acierto"`
	}

	var req request
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, "cuerpo de la petición inválido")
		return
	}
	if req.FueAcierto == nil {
		utils.Error(ctx, http.StatusBadRequest, "falta el campo fue_acierto")
		return
	}
	if req.ResiduoID == nil {
		utils.Error(ctx, http.StatusBadRequest, "falta el campo residuo_id")
		return
	}
	if req.Puntos == nil {
		utils.Error(ctx, http.StatusBadRequest, "falta el campo puntos")
		return
	}
	if req.CO2Evitado == nil {
		utils.Error(ctx, http.StatusBadRequest, "falta el campo co2_evitado")
		return
	}
	// Aggregates only ever grow; a negative delta would break the invariant.
	if *req.Puntos < 0 || *req.CO2Evitado < 0 {
		utils.Error(ctx, http.StatusBadRequest, "puntos y co2_evitado no pueden ser negativos")
		return
	}

	now := time.Now()
	err := p.db.Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := lockUserRow(tx).First(&user, targetID).Error; err != nil {
			return err
		}

		var residuo models.WasteItem
		if err := tx.First(&residuo, *req.ResiduoID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errResiduoNotFound
			}
			return err
		}

		attempt := models.Attempt{
			UsuarioID:       user.ID,
			ResiduoID:       residuo.ID,
			FueAcierto:      *req.FueAcierto,
			PuntosOtorgados: *req.Puntos,
			Fecha:           now,
		}
		if err := tx.Create(&attempt).Error; err != nil {
			return err
		}

		user.Puntos += *req.Puntos
		user.CO2Evitado += *req.CO2Evitado

		return tx.Save(&user).Error
	})

	if err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			utils.Error(ctx, http.StatusNotFound, "usuario no encontrado")
		case errors.Is(err, errResiduoNotFound):
			utils.Error(ctx, http.StatusBadRequest, "residuo_id no referencia un residuo existente")
		default:
			utils.Error(ctx, http.StatusInternalServerError, "no se pudo guardar el progreso")
		}
		return
	}

	p.afterCommit(targetID, *req.ResiduoID, *req.FueAcierto, now)

	utils.Success(ctx, nil)
}

// RegisterClassification handles POST /api/clasificacion/registrar.
// The reward is computed server-side inside the transaction, so a forged
// client delta cannot inflate the aggregate and a concurrent duplicate
// submission cannot double-apply.
func (p *ProgressController) RegisterClassification(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Reject(ctx, http.StatusUnauthorized, "no autorizado")
		return
	}

	type request struct {
		UsuarioID  *uint `json:"usuario_id"`
		ResiduoID  *uint `json:"residuo_id"`
		FueAcierto *bool `json:"fue_acierto"`
	}

	var req request
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Reject(ctx, http.StatusBadRequest, "cuerpo de la petición inválido")
		return
	}
	if req.UsuarioID == nil {
		utils.Reject(ctx, http.StatusBadRequest, "falta el campo usuario_id")
		return
	}
	if req.ResiduoID == nil {
		utils.Reject(ctx, http.StatusBadRequest, "falta el campo residuo_id")
		return
	}
	if req.FueAcierto == nil {
		utils.Reject(ctx, http.StatusBadRequest, "falta el campo fue_acierto")
		return
	}
	if *req.UsuarioID != userID {
		utils.Reject(ctx, http.StatusForbidden, "no puedes registrar clasificaciones de otro usuario")
		return
	}

	cfg := config.Get()
	now := time.Now()
	todayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	tomorrowStart := todayStart.Add(24 * time.Hour)

	var newPuntos int
	var newCO2 float64
	var hoy int64

	err := p.db.Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := lockUserRow(tx).First(&user, userID).Error; err != nil {
			return err
		}

		var residuo models.WasteItem
		if err := tx.First(&residuo, *req.ResiduoID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errResiduoNotFound
			}
			return err
		}

		if err := tx.Model(&models.Attempt{}).
			Where("usuario_id = ? AND fecha >= ? AND fecha < ?", userID, todayStart, tomorrowStart).
			Count(&hoy).Error; err != nil {
			return err
		}
		if cfg.MaxPerDay > 0 && hoy >= int64(cfg.MaxPerDay) {
			return errDailyLimit
		}

		puntos := 0
		co2 := 0.0
		if *req.FueAcierto {
			puntos = cfg.PointsPerCorrect
			co2 = rewardCO2(residuo)
		}

		attempt := models.Attempt{
			UsuarioID:       user.ID,
			ResiduoID:       residuo.ID,
			FueAcierto:      *req.FueAcierto,
			PuntosOtorgados: puntos,
			Fecha:           now,
		}
		if err := tx.Create(&attempt).Error; err != nil {
			return err
		}

		user.Puntos += puntos
		user.CO2Evitado += co2
		if err := tx.Save(&user).Error; err != nil {
			return err
		}

		newPuntos = user.Puntos
		newCO2 = user.CO2Evitado
		hoy++
		return nil
	})

	if err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			utils.Reject(ctx, http.StatusNotFound, "usuario no encontrado")
		case errors.Is(err, errResiduoNotFound):
			utils.Reject(ctx, http.StatusBadRequest, "residuo_id no referencia un residuo existente")
		case errors.Is(err, errDailyLimit):
			utils.Reject(ctx, http.StatusTooManyRequests, err.Error())
		default:
			utils.Reject(ctx, http.StatusInternalServerError, "no se pudo registrar la clasificación")
		}
		return
	}

	p.afterCommit(userID, *req.ResiduoID, *req.FueAcierto, now)

	utils.Success(ctx, gin.H{
		"mensaje": "clasificación registrada",
		"datos": gin.H{
			"puntos":              newPuntos,
			"co2_evitado":         newCO2,
			"clasificaciones_hoy": hoy,
		},
	})
}

// lockUserRow takes a row lock on the user for the rest of the transaction,
// so concurrent submissions for the same user serialize at the store.
// SQLite has no FOR UPDATE; its single-writer model already serializes.
func lockUserRow(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

// rewardCO2 weights the catalog CO2 value by item difficulty (1..5).
func rewardCO2(residuo models.WasteItem) float64 {
	dificultad := residuo.Dificultad
	if dificultad < 1 {
		dificultad = 1
	}
	return residuo.CO2Impacto * (1 + float64(dificultad-1)/4)
}

// afterCommit runs once the primary transaction is durable: it hands the
// mirror event to the analytics sink and drops stale cached projections.
// Nothing here can fail the request, the response is already decided.
func (p *ProgressController) afterCommit(usuarioID, residuoID uint, fueAcierto bool, ts time.Time) {
	// The mirror is a coarse behavioral signal, not a ledger: fixed 10/0 by
	// correctness regardless of the delta actually applied.
	otorgados := 0
	if fueAcierto {
		otorgados = 10
	}
	p.sink.Submit(models.AnalyticsEvent{
		UsuarioID:       usuarioID,
		ResiduoID:       residuoID,
		FueAcierto:      fueAcierto,
		PuntosOtorgados: otorgados,
		Timestamp:       ts,
	})

	utils.InvalidateByPrefix(utils.RankingCacheKey)
	utils.InvalidateByPrefix("cache:usuario:" + strconv.FormatUint(uint64(usuarioID), 10))
}
