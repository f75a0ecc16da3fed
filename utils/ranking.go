package utils

import (
	"time"

	"gorm.io/gorm"

	"github.com/ecoguide/ecoguide/config"
	"github.com/ecoguide/ecoguide/models"
)

// RankingCacheKey holds the serialized leaderboard response body.
const RankingCacheKey = "cache:ranking:top"

// RankingEntry is one leaderboard row.
type RankingEntry struct {
	Posicion   int     `json:"posicion"`
	ID         uint    `json:"id"`
	Nombre     string  `json:"nombre"`
	AvatarURL  string  `json:"avatar_url"`
	Puntos     int     `json:"puntos"`
	CO2Evitado float64 `json:"co2_evitado"`
}

// FetchRanking loads the top users by puntos from the primary store.
func FetchRanking(db *gorm.DB, limit int) ([]RankingEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	var users []models.User
	if err := db.Order("puntos DESC, id ASC").Limit(limit).Find(&users).Error; err != nil {
		return nil, err
	}
	entries := make([]RankingEntry, 0, len(users))
	for i, u := range users {
		entries = append(entries, RankingEntry{
			Posicion:   i + 1,
			ID:         u.ID,
			Nombre:     u.Nombre,
			AvatarURL:  u.AvatarURL,
			Puntos:     u.Puntos,
			CO2Evitado: u.CO2Evitado,
		})
	}
	return entries, nil
}

// RankingResponseBody builds the exact response body the ranking endpoint
// serves, so the warmer and the controller cache identical bytes.
func RankingResponseBody(entries []RankingEntry) map[string]interface{} {
	return map[string]interface{}{"success": true, "ranking": entries}
}

// StartRankingWarmer launches a background goroutine that periodically
// refreshes the leaderboard cache. Best-effort: failures are logged and the
// next tick tries again.
func StartRankingWarmer(db *gorm.DB, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	go func() {
		for {
			// Sleep first to avoid racing immediately at startup
			time.Sleep(interval)
			entries, err := FetchRanking(db, config.Get().RankingSize)
			if err != nil {
				if Sugar != nil {
					Sugar.Warnf("ranking warmer query failed: %v", err)
				}
				continue
			}
			CacheSetJSON(RankingCacheKey, RankingResponseBody(entries), 2*interval)
		}
	}()
}
